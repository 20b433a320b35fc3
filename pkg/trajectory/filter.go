// Package trajectory turns a hiker's raw journal positions for one year into a
// smooth day-indexed path.
//
// The jump filter compares every sample with the last accepted one and drops
// it when the great-circle distance exceeds the threshold. A hiker who really
// relocates further than the threshold (a trail skip by car, a flip-flop
// restart) loses every later sample for the year. This is a known
// precision/recall trade-off and is intentionally left as is.
package trajectory

import (
	"math"
	"sort"
	"time"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

const earthRadiusKM = 6371.0

// Default options
const (
	DefaultJumpThresholdKM = 300.0
	DefaultStrideDays      = 3
	DefaultLastDay         = 364
)

// Sample is one raw position of a hiker
type Sample struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// Options controls filtering and sampling. Samples farther than
// JumpThresholdKM from the last kept one are dropped, so a hiker who skips a
// section by vehicle loses the samples after the skip.
type Options struct {
	JumpThresholdKM float64 `json:"jump_threshold_km"`
	StrideDays      int     `json:"stride_days"`
	LastDay         int     `json:"last_day"`
}

// DefaultOptions returns the 300 km / every third day setup
func DefaultOptions() Options {
	return Options{
		JumpThresholdKM: DefaultJumpThresholdKM,
		StrideDays:      DefaultStrideDays,
		LastDay:         DefaultLastDay,
	}
}

func (o Options) normalized() Options {
	if o.JumpThresholdKM <= 0 {
		o.JumpThresholdKM = DefaultJumpThresholdKM
	}
	if o.StrideDays <= 0 {
		o.StrideDays = DefaultStrideDays
	}
	if o.LastDay <= 0 {
		o.LastDay = DefaultLastDay
	}
	return o
}

// Days lists the evaluation days 0, stride, 2*stride, ... up to LastDay.
func (o Options) Days() []int {
	o = o.normalized()
	days := make([]int, 0, o.LastDay/o.StrideDays+1)
	for d := 0; d <= o.LastDay; d += o.StrideDays {
		days = append(days, d)
	}
	return days
}

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Dedupe sorts samples chronologically and keeps the first sample of each
// calendar day. The input slice is not modified.
func Dedupe(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := make([]Sample, 0, len(sorted))
	seen := make(map[[2]int]struct{}, len(sorted))
	for _, s := range sorted {
		utc := s.Time.UTC()
		key := [2]int{utc.Year(), utc.YearDay()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FilterJumps keeps the first sample and every later sample within
// thresholdKM of the last kept one. Rejected samples never become the
// reference point. Running it on its own output changes nothing.
func FilterJumps(samples []Sample, thresholdKM float64) []Sample {
	if len(samples) == 0 {
		return nil
	}

	kept := []Sample{samples[0]}
	last := samples[0]
	for _, s := range samples[1:] {
		if HaversineKM(last.Latitude, last.Longitude, s.Latitude, s.Longitude) <= thresholdKM {
			kept = append(kept, s)
			last = s
		}
	}
	return kept
}

// SamplesByHiker groups the year's journal positions by normalized hiker id.
// Sample times are converted to UTC.
func SamplesByHiker(entries []models.JournalEntry, year int) map[string][]Sample {
	out := make(map[string][]Sample)
	for _, e := range entries {
		if e.Year() != year {
			continue
		}
		hiker := e.NormalizedHikerID()
		if hiker == "" {
			continue
		}
		out[hiker] = append(out[hiker], Sample{Time: e.Timestamp.UTC(), Latitude: e.Latitude, Longitude: e.Longitude})
	}
	return out
}
