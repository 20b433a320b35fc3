package trajectory

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

func day(year, d int) time.Time {
	return models.DateOf(year, d)
}

func TestHaversineKM(t *testing.T) {
	assert.InDelta(t, 0, HaversineKM(34, -84, 34, -84), 1e-9)
	// one degree of latitude
	assert.InDelta(t, 111.19, HaversineKM(0, 0, 1, 0), 0.01)
	// quarter of the equator
	assert.InDelta(t, 10007.5, HaversineKM(0, 0, 0, 90), 0.5)
	assert.InDelta(t, HaversineKM(34, -84, 40, -75), HaversineKM(40, -75, 34, -84), 1e-9)
}

func TestDedupe(t *testing.T) {
	base := time.Date(2021, 4, 1, 8, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Time: base.Add(48 * time.Hour), Latitude: 3},
		{Time: base.Add(2 * time.Hour), Latitude: 2},
		{Time: base, Latitude: 1},
		{Time: base.Add(24 * time.Hour), Latitude: 4},
	}

	got := Dedupe(samples)
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Latitude, "first sample of the day wins")
	assert.Equal(t, 4.0, got[1].Latitude)
	assert.Equal(t, 3.0, got[2].Latitude)
	assert.Equal(t, 3.0, samples[0].Latitude, "input left untouched")
}

func TestFilterJumps(t *testing.T) {
	samples := []Sample{
		{Time: day(2021, 0), Latitude: 34.0, Longitude: -84.0},
		{Time: day(2021, 1), Latitude: 34.1, Longitude: -84.0},
		{Time: day(2021, 2), Latitude: 10.0, Longitude: 10.0}, // outlier
		{Time: day(2021, 3), Latitude: 34.2, Longitude: -84.0},
	}

	t.Run("outlier does not become reference", func(t *testing.T) {
		kept := FilterJumps(samples, DefaultJumpThresholdKM)
		require.Len(t, kept, 3)
		assert.Equal(t, 34.0, kept[0].Latitude)
		assert.Equal(t, 34.1, kept[1].Latitude)
		assert.Equal(t, 34.2, kept[2].Latitude)
	})

	t.Run("idempotent", func(t *testing.T) {
		once := FilterJumps(samples, DefaultJumpThresholdKM)
		twice := FilterJumps(once, DefaultJumpThresholdKM)
		assert.Equal(t, once, twice)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, FilterJumps(nil, DefaultJumpThresholdKM))
	})

	t.Run("relocation past threshold drops the rest of the year", func(t *testing.T) {
		moved := []Sample{
			{Time: day(2021, 0), Latitude: 34.0, Longitude: -84.0},
			{Time: day(2021, 1), Latitude: 44.0, Longitude: -71.0},
			{Time: day(2021, 2), Latitude: 44.1, Longitude: -71.0},
		}
		kept := FilterJumps(moved, DefaultJumpThresholdKM)
		assert.Len(t, kept, 1)
	})
}

func TestMidpointScenario(t *testing.T) {
	samples := []Sample{
		{Time: day(2021, 0), Latitude: 34.0, Longitude: -84.0},
		{Time: day(2021, 30), Latitude: 34.5, Longitude: -83.5},
	}

	ip, err := Build("x", 2021, samples, DefaultOptions())
	require.NoError(t, err)

	pos, ok := ip.At(15)
	require.True(t, ok)
	assert.InDelta(t, 34.25, pos.Latitude, 1e-12)
	assert.InDelta(t, -83.75, pos.Longitude, 1e-12)

	_, ok = ip.At(0)
	assert.True(t, ok)
	_, ok = ip.At(30)
	assert.True(t, ok)
	_, ok = ip.At(31)
	assert.False(t, ok, "no extrapolation past the last sample")
}

func TestInterpolationIsPure(t *testing.T) {
	samples := []Sample{
		{Time: day(2021, 5), Latitude: 35.1, Longitude: -83.2},
		{Time: day(2021, 17), Latitude: 35.6, Longitude: -82.9},
		{Time: day(2021, 40), Latitude: 36.3, Longitude: -81.7},
	}
	ip, err := Build("pure", 2021, samples, DefaultOptions())
	require.NoError(t, err)

	for d := 5; d <= 40; d++ {
		a, okA := ip.At(d)
		b, okB := ip.At(d)
		require.Equal(t, okA, okB)
		assert.True(t, a == b, "day %d evaluated differently", d)
	}
	assert.Equal(t, ip.Sample(DefaultOptions()), ip.Sample(DefaultOptions()))
}

func TestRoundTrip(t *testing.T) {
	t.Run("two samples 1 km apart", func(t *testing.T) {
		samples := []Sample{
			{Time: day(2022, 10), Latitude: 35.0, Longitude: -83.0},
			{Time: day(2022, 40), Latitude: 35.009, Longitude: -83.0},
		}
		require.Less(t, HaversineKM(35.0, -83.0, 35.009, -83.0), 1.01)

		ip, err := Build("near", 2022, samples, DefaultOptions())
		require.NoError(t, err)

		points := ip.Sample(DefaultOptions())
		var days []int
		for _, p := range points {
			days = append(days, p.Day)
			assert.Equal(t, "near", p.HikerID)
		}
		assert.Equal(t, []int{12, 15, 18, 21, 24, 27, 30, 33, 36, 39}, days)
	})

	t.Run("two samples 10000 km apart", func(t *testing.T) {
		samples := []Sample{
			{Time: day(2022, 10), Latitude: 0, Longitude: 0},
			{Time: day(2022, 40), Latitude: 0, Longitude: 90},
		}
		ip, err := Build("far", 2022, samples, DefaultOptions())
		assert.Nil(t, ip)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInsufficientTrajectoryData))

		var insufficient *models.InsufficientTrajectoryDataError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 1, insufficient.Samples)
	})
}

func TestOptionsDays(t *testing.T) {
	days := DefaultOptions().Days()
	assert.Equal(t, 0, days[0])
	assert.Equal(t, 363, days[len(days)-1])
	assert.Len(t, days, 122)

	custom := Options{StrideDays: 7, LastDay: 14}.Days()
	assert.Equal(t, []int{0, 7, 14}, custom)
}

func TestBuildAll(t *testing.T) {
	entries := []models.JournalEntry{
		{HikerID: "Alpha", Timestamp: day(2021, 0), Latitude: 34.0, Longitude: -84.0},
		{HikerID: "alpha ", Timestamp: day(2021, 9), Latitude: 34.3, Longitude: -83.8},
		{HikerID: "Bravo", Timestamp: day(2021, 3), Latitude: 34.0, Longitude: -84.0},
		{HikerID: "Alpha", Timestamp: day(2020, 3), Latitude: 10.0, Longitude: 10.0},
	}

	got, skipped := BuildAll(entries, 2021, []string{"alpha", "bravo", "charlie"}, DefaultOptions(), zerolog.Nop())

	require.Len(t, got, 1)
	require.Contains(t, got, "alpha")
	assert.Equal(t, 2, got["alpha"].Points())

	require.Len(t, skipped, 2)
	for _, err := range skipped {
		assert.True(t, errors.Is(err, models.ErrInsufficientTrajectoryData))
	}
}

func TestBuildAllMixedOffsets(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	entries := []models.JournalEntry{
		// Same UTC day (March 2): 01:00Z and 23:00 EST on March 1.
		{HikerID: "delta", Timestamp: time.Date(2021, 3, 2, 1, 0, 0, 0, time.UTC), Latitude: 35.0, Longitude: -83.0},
		{HikerID: "delta", Timestamp: time.Date(2021, 3, 1, 23, 0, 0, 0, est), Latitude: 35.1, Longitude: -83.0},
		{HikerID: "delta", Timestamp: time.Date(2021, 3, 10, 12, 0, 0, 0, est), Latitude: 35.2, Longitude: -83.0},
	}

	got, skipped := BuildAll(entries, 2021, []string{"delta"}, DefaultOptions(), zerolog.Nop())
	require.Empty(t, skipped)
	require.Contains(t, got, "delta")
	assert.Equal(t, 2, got["delta"].Points())

	pos, ok := got["delta"].At(60)
	require.True(t, ok)
	assert.InDelta(t, 35.0, pos.Latitude, 1e-12, "earliest instant of the UTC day wins")
	_, ok = got["delta"].At(69)
	assert.False(t, ok)
}

func TestSamplesByHikerUTCYear(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	entries := []models.JournalEntry{
		// Local New Year's Day in Tokyo, still 2020 in UTC.
		{HikerID: "echo", Timestamp: time.Date(2021, 1, 1, 3, 0, 0, 0, tokyo), Latitude: 35.0, Longitude: 139.0},
		{HikerID: "echo", Timestamp: time.Date(2021, 1, 2, 3, 0, 0, 0, tokyo), Latitude: 35.1, Longitude: 139.0},
	}

	got := SamplesByHiker(entries, 2021)
	require.Len(t, got["echo"], 1)
	assert.Equal(t, time.UTC, got["echo"][0].Time.Location())
	assert.Equal(t, 0, models.DayOfYear(got["echo"][0].Time))
	assert.Len(t, SamplesByHiker(entries, 2020)["echo"], 1)
}

func TestFitErrorWrapping(t *testing.T) {
	cause := errors.New("bad knots")
	err := error(&models.TrajectoryFitError{HikerID: "foxtrot", Year: 2021, Err: cause})

	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, models.ErrInsufficientTrajectoryData))
	assert.Contains(t, err.Error(), "foxtrot")
}
