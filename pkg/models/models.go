package models

import (
	"math"
	"sort"
	"strings"
	"time"
)

// JournalEntry is one typed row of the journal table. Entries are treated as
// immutable once loaded.
type JournalEntry struct {
	HikerID   string    `json:"hiker_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Mentions  []string  `json:"mentioned_hiker_ids,omitempty"`
}

// Position is a single geographic point
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TrajectoryPoint is an interpolated hiker position on a given day of the year.
type TrajectoryPoint struct {
	Day       int     `json:"day"`
	HikerID   string  `json:"hiker_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NormalizeHikerID trims, lowercases and strips every non-letter from a trail
// name. All hiker comparisons and groupings go through this.
func NormalizeHikerID(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedHikerID returns the normalized author id of the entry
func (e JournalEntry) NormalizedHikerID() string {
	return NormalizeHikerID(e.HikerID)
}

// NormalizedMentions returns the distinct, non-empty normalized ids mentioned
// by the entry in ascending order.
func (e JournalEntry) NormalizedMentions() []string {
	if len(e.Mentions) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(e.Mentions))
	out := make([]string, 0, len(e.Mentions))
	for _, m := range e.Mentions {
		id := NormalizeHikerID(m)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Year returns the calendar year of the entry timestamp in UTC
func (e JournalEntry) Year() int {
	return e.Timestamp.UTC().Year()
}

// Validate checks the fields required by the analysis core.
func (e JournalEntry) Validate() error {
	if e.NormalizedHikerID() == "" {
		return &MalformedRecordError{Row: -1, Field: "hiker_id", Message: "hiker id is empty after normalization", Value: e.HikerID}
	}
	if e.Timestamp.IsZero() {
		return &MalformedRecordError{Row: -1, Field: "timestamp", Message: "timestamp is missing"}
	}
	if math.IsNaN(e.Latitude) || e.Latitude < -90 || e.Latitude > 90 {
		return &MalformedRecordError{Row: -1, Field: "latitude", Message: "latitude out of range"}
	}
	if math.IsNaN(e.Longitude) || e.Longitude < -180 || e.Longitude > 180 {
		return &MalformedRecordError{Row: -1, Field: "longitude", Message: "longitude out of range"}
	}
	return nil
}

// FilterYear returns the entries whose timestamp falls in the given year.
func FilterYear(entries []JournalEntry, year int) []JournalEntry {
	out := make([]JournalEntry, 0)
	for _, e := range entries {
		if e.Year() == year {
			out = append(out, e)
		}
	}
	return out
}

// Years lists the distinct years present in entries, ascending
func Years(entries []JournalEntry) []int {
	seen := make(map[int]struct{})
	for _, e := range entries {
		seen[e.Year()] = struct{}{}
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// DayOfYear returns the zero-based day offset of t from January 1 of its
// year, both taken in UTC.
func DayOfYear(t time.Time) int {
	return t.UTC().YearDay() - 1
}

// DateOf returns the calendar date for a zero-based day offset within year.
func DateOf(year, day int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}
