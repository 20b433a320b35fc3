package models

import (
	"errors"
	"fmt"
)

// Sentinels matched through errors.Is by the typed errors below.
var (
	ErrEmptyYear                  = errors.New("no journal entries for year")
	ErrEmptyGraph                 = errors.New("mention graph has no nodes")
	ErrInsufficientTrajectoryData = errors.New("insufficient trajectory data")
	ErrMalformedRecord            = errors.New("malformed journal record")
)

// EmptyYearError reports that no entries exist for the requested year.
type EmptyYearError struct {
	Year int
}

func (e *EmptyYearError) Error() string {
	return fmt.Sprintf("no journal entries for year %d", e.Year)
}

func (e *EmptyYearError) Is(target error) bool { return target == ErrEmptyYear }

// EmptyGraphError reports a graph with zero nodes
type EmptyGraphError struct {
	Year int
}

func (e *EmptyGraphError) Error() string {
	return fmt.Sprintf("mention graph for year %d has no nodes", e.Year)
}

func (e *EmptyGraphError) Is(target error) bool { return target == ErrEmptyGraph }

// InsufficientTrajectoryDataError reports a hiker left with fewer than two
// position samples after jump filtering. The hiker is omitted from frames.
type InsufficientTrajectoryDataError struct {
	HikerID string
	Year    int
	Samples int
}

func (e *InsufficientTrajectoryDataError) Error() string {
	return fmt.Sprintf("hiker %q has %d usable samples in %d, need at least 2", e.HikerID, e.Samples, e.Year)
}

func (e *InsufficientTrajectoryDataError) Is(target error) bool {
	return target == ErrInsufficientTrajectoryData
}

// TrajectoryFitError reports a hiker whose samples could not be fitted for a
// reason other than too few samples. The hiker is omitted from frames.
type TrajectoryFitError struct {
	HikerID string
	Year    int
	Err     error
}

func (e *TrajectoryFitError) Error() string {
	return fmt.Sprintf("fit trajectory of hiker %q in %d: %v", e.HikerID, e.Year, e.Err)
}

func (e *TrajectoryFitError) Unwrap() error { return e.Err }

// MalformedRecordError describes one rejected journal row. Row is the 1-based
// data row in the source table, or -1 when the entry did not come from a table.
type MalformedRecordError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e *MalformedRecordError) Error() string {
	prefix := "malformed record"
	if e.Row >= 0 {
		prefix = fmt.Sprintf("malformed record at row %d", e.Row)
	}
	if e.Value != "" {
		return fmt.Sprintf("%s: field '%s': %s (value: %s)", prefix, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: field '%s': %s", prefix, e.Field, e.Message)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// IsNoData reports whether err means "nothing to analyze" rather than a fault.
func IsNoData(err error) bool {
	return errors.Is(err, ErrEmptyYear) || errors.Is(err, ErrEmptyGraph)
}
