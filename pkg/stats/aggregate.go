// Package stats summarizes the communities of one year and compares years.
package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// CommunityStats describes one community of one year
type CommunityStats struct {
	ID              int      `json:"id"`
	Label           string   `json:"label"`
	Size            int      `json:"size"`
	Activeness      int      `json:"activeness"`
	Share           float64  `json:"activeness_share"`
	Members         []string `json:"members"`
	Representatives []string `json:"representatives,omitempty"`
}

// YearSummary holds the per-community numbers and the year-level
// distribution used for cross-year comparison.
type YearSummary struct {
	Year           int              `json:"year"`
	NumCommunities int              `json:"num_communities"`
	NumHikers      int              `json:"num_hikers"`
	TotalEntries   int              `json:"total_entries"`
	Modularity     float64          `json:"modularity"`
	Sizes          []int            `json:"sizes"`
	SizeHistogram  map[int]int      `json:"size_histogram"`
	MeanSize       float64          `json:"mean_size"`
	MedianSize     float64          `json:"median_size"`
	MeanActiveness float64          `json:"mean_activeness"`
	Communities    []CommunityStats `json:"communities"`
}

// Label names a community for cross-year charts, e.g. "2019_G3".
func Label(year, id int) string {
	return fmt.Sprintf("%d_G%d", year, id)
}

// Aggregate computes size and activeness for every community of a. Entries
// from other years are ignored, as are entries whose author is not a member
// of any community.
func Aggregate(a *louvain.Assignment, entries []models.JournalEntry) *YearSummary {
	if a == nil {
		return &YearSummary{SizeHistogram: map[int]int{}}
	}

	summary := &YearSummary{
		Year:           a.Year,
		NumCommunities: a.NumCommunities(),
		NumHikers:      len(a.Communities),
		Modularity:     a.Modularity,
		SizeHistogram:  make(map[int]int),
		Communities:    make([]CommunityStats, a.NumCommunities()),
	}

	for id, members := range a.Members {
		summary.Communities[id] = CommunityStats{
			ID:      id,
			Label:   Label(a.Year, id),
			Size:    len(members),
			Members: append([]string(nil), members...),
		}
	}

	for _, e := range entries {
		if e.Year() != a.Year {
			continue
		}
		c, ok := a.Communities[e.NormalizedHikerID()]
		if !ok {
			continue
		}
		summary.Communities[c].Activeness++
		summary.TotalEntries++
	}

	summary.Sizes = make([]int, len(summary.Communities))
	sizes := make([]float64, len(summary.Communities))
	activeness := make([]float64, len(summary.Communities))
	for i, c := range summary.Communities {
		summary.Sizes[i] = c.Size
		summary.SizeHistogram[c.Size]++
		sizes[i] = float64(c.Size)
		activeness[i] = float64(c.Activeness)
	}

	for i, share := range summary.activenessShare() {
		summary.Communities[i].Share = share
	}

	if len(sizes) > 0 {
		summary.MeanSize = stat.Mean(sizes, nil)
		summary.MeanActiveness = stat.Mean(activeness, nil)
		sort.Float64s(sizes)
		summary.MedianSize = stat.Quantile(0.5, stat.Empirical, sizes, nil)
	}

	return summary
}

// EmptySummary is the summary of a year with no data. Trend charts show it as
// zero communities rather than dropping the year.
func EmptySummary(year int) *YearSummary {
	return &YearSummary{Year: year, Sizes: []int{}, SizeHistogram: map[int]int{}, Communities: []CommunityStats{}}
}

// Largest returns the n largest communities, ties broken by id
func (s *YearSummary) Largest(n int) []CommunityStats {
	out := append([]CommunityStats(nil), s.Communities...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// activenessShare returns each community's share of the year's entries, all
// zero when there are none
func (s *YearSummary) activenessShare() []float64 {
	share := make([]float64, len(s.Communities))
	for i, c := range s.Communities {
		share[i] = float64(c.Activeness)
	}
	total := floats.Sum(share)
	if total == 0 {
		return share
	}
	floats.Scale(1/total, share)
	return share
}
