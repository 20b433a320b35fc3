package models

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHikerID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sunshine", "sunshine"},
		{"  Blue Jay  ", "bluejay"},
		{"Mr. Smiles-2", "mrsmiles"},
		{"O'Doyle", "odoyle"},
		{"1234", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHikerID(tt.in))
		})
	}
}

func TestNormalizedMentions(t *testing.T) {
	e := JournalEntry{Mentions: []string{"Zed", " zed ", "Apple Pie", "", "42"}}
	assert.Equal(t, []string{"applepie", "zed"}, e.NormalizedMentions())

	assert.Nil(t, JournalEntry{}.NormalizedMentions())
}

func TestValidate(t *testing.T) {
	ts := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Valid", func(t *testing.T) {
		e := JournalEntry{HikerID: "Gandalf", Timestamp: ts, Latitude: 34.6, Longitude: -84.2}
		require.NoError(t, e.Validate())
	})

	bad := map[string]JournalEntry{
		"hiker_id":  {HikerID: "##", Timestamp: ts},
		"timestamp": {HikerID: "x"},
		"latitude":  {HikerID: "x", Timestamp: ts, Latitude: 91},
		"longitude": {HikerID: "x", Timestamp: ts, Longitude: math.NaN()},
	}
	for field, e := range bad {
		t.Run(field, func(t *testing.T) {
			err := e.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord))

			var mre *MalformedRecordError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, field, mre.Field)
		})
	}
}

func TestYearsAndFilter(t *testing.T) {
	entries := []JournalEntry{
		{HikerID: "a", Timestamp: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{HikerID: "b", Timestamp: time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)},
		{HikerID: "c", Timestamp: time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)},
	}

	assert.Equal(t, []int{2019, 2022}, Years(entries))
	assert.Len(t, FilterYear(entries, 2022), 2)
	assert.Empty(t, FilterYear(entries, 2020))
}

func TestDayOfYear(t *testing.T) {
	assert.Equal(t, 0, DayOfYear(time.Date(2021, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30, DayOfYear(time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), DateOf(2021, 31))

	est := time.FixedZone("EST", -5*60*60)
	// 23:00 EST on March 1 is 04:00 UTC on March 2.
	assert.Equal(t, 60, DayOfYear(time.Date(2021, 3, 1, 23, 0, 0, 0, est)))
	assert.Equal(t, DayOfYear(time.Date(2021, 3, 2, 1, 0, 0, 0, time.UTC)), DayOfYear(time.Date(2021, 3, 1, 23, 0, 0, 0, est)))
}

func TestYearIsUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	e := JournalEntry{HikerID: "a", Timestamp: time.Date(2021, 12, 31, 22, 0, 0, 0, est)}

	assert.Equal(t, 2022, e.Year())
	assert.Equal(t, []int{2022}, Years([]JournalEntry{e}))
	assert.Len(t, FilterYear([]JournalEntry{e}, 2022), 1)
	assert.Empty(t, FilterYear([]JournalEntry{e}, 2021))
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("analyze: %w", &EmptyYearError{Year: 2020})
	assert.True(t, errors.Is(wrapped, ErrEmptyYear))
	assert.True(t, IsNoData(wrapped))
	assert.True(t, IsNoData(&EmptyGraphError{Year: 2020}))
	assert.False(t, IsNoData(&InsufficientTrajectoryDataError{HikerID: "x"}))

	var eye *EmptyYearError
	require.True(t, errors.As(wrapped, &eye))
	assert.Equal(t, 2020, eye.Year)

	mre := &MalformedRecordError{Row: 3, Field: "date", Message: "unparsable", Value: "yesterday"}
	assert.Contains(t, mre.Error(), "row 3")
	assert.Contains(t, mre.Error(), "yesterday")
}
