// Package frames samples interpolated hiker positions at fixed calendar steps,
// one frame sequence per community, for time-stepped map rendering.
package frames

import (
	"fmt"
	"time"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/models"
	"github.com/gilchrisn/trail-community-service/pkg/trajectory"
)

// Frame is one sampled date of a community animation. Positions is empty, not
// nil, when no member has a defined position on that date.
type Frame struct {
	Day       int                        `json:"day"`
	Date      time.Time                  `json:"date"`
	Positions map[string]models.Position `json:"positions"`
}

// FrameSet is the ordered animation for one community of one year.
// Hikers is the stable member enumeration used for color assignment; it
// includes members that never appear in any frame.
type FrameSet struct {
	Year        int      `json:"year"`
	CommunityID int      `json:"community_id"`
	Hikers      []string `json:"hikers"`
	Frames      []Frame  `json:"frames"`
}

// UnknownCommunityError is returned for a community id outside the assignment.
type UnknownCommunityError struct {
	Year        int
	CommunityID int
}

func (e *UnknownCommunityError) Error() string {
	return fmt.Sprintf("community %d does not exist in %d", e.CommunityID, e.Year)
}

// Compose builds the frame sequence of communityID. Every evaluation day of
// opts yields a frame, in ascending order, whether or not anyone is on the map.
func Compose(year int, a *louvain.Assignment, trajectories map[string]*trajectory.Interpolator, communityID int, opts trajectory.Options) (*FrameSet, error) {
	if a == nil {
		return nil, &models.EmptyGraphError{Year: year}
	}
	members, ok := a.MembersOf(communityID)
	if !ok {
		return nil, &UnknownCommunityError{Year: year, CommunityID: communityID}
	}

	days := opts.Days()
	fs := &FrameSet{
		Year:        year,
		CommunityID: communityID,
		Hikers:      members,
		Frames:      make([]Frame, 0, len(days)),
	}

	for _, d := range days {
		frame := Frame{
			Day:       d,
			Date:      models.DateOf(year, d),
			Positions: make(map[string]models.Position),
		}
		for _, hiker := range members {
			ip, ok := trajectories[hiker]
			if !ok {
				continue
			}
			if pos, ok := ip.At(d); ok {
				frame.Positions[hiker] = pos
			}
		}
		fs.Frames = append(fs.Frames, frame)
	}

	return fs, nil
}

// ComposeAll builds frame sets for every community of the assignment, indexed
// by community id.
func ComposeAll(year int, a *louvain.Assignment, trajectories map[string]*trajectory.Interpolator, opts trajectory.Options) ([]*FrameSet, error) {
	if a == nil {
		return nil, &models.EmptyGraphError{Year: year}
	}
	out := make([]*FrameSet, a.NumCommunities())
	for id := range out {
		fs, err := Compose(year, a, trajectories, id, opts)
		if err != nil {
			return nil, err
		}
		out[id] = fs
	}
	return out, nil
}

// ActiveFrames counts frames that have at least one position
func (fs *FrameSet) ActiveFrames() int {
	n := 0
	for _, f := range fs.Frames {
		if len(f.Positions) > 0 {
			n++
		}
	}
	return n
}

// Points flattens the frames into trajectory points ordered by day, then by
// the member enumeration.
func (fs *FrameSet) Points() []models.TrajectoryPoint {
	var out []models.TrajectoryPoint
	for _, f := range fs.Frames {
		for _, hiker := range fs.Hikers {
			pos, ok := f.Positions[hiker]
			if !ok {
				continue
			}
			out = append(out, models.TrajectoryPoint{
				Day:       f.Day,
				HikerID:   hiker,
				Latitude:  pos.Latitude,
				Longitude: pos.Longitude,
			})
		}
	}
	return out
}
