package trajectory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/interp"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// Interpolator maps a day of the year to a position by piecewise-linear
// interpolation of latitude and longitude. It is read-only after Fit, so one
// instance can be evaluated from many goroutines.
type Interpolator struct {
	HikerID string
	Year    int

	lat    interp.PiecewiseLinear
	lon    interp.PiecewiseLinear
	minDay float64
	maxDay float64
	points int
}

// Fit builds the interpolants over samples that are already deduplicated and
// jump-filtered. Fewer than two samples yields InsufficientTrajectoryDataError.
func Fit(hikerID string, year int, samples []Sample) (*Interpolator, error) {
	if len(samples) < 2 {
		return nil, &models.InsufficientTrajectoryDataError{HikerID: hikerID, Year: year, Samples: len(samples)}
	}

	days := make([]float64, len(samples))
	lats := make([]float64, len(samples))
	lons := make([]float64, len(samples))
	for i, s := range samples {
		days[i] = float64(models.DayOfYear(s.Time))
		lats[i] = s.Latitude
		lons[i] = s.Longitude
	}
	if !sort.Float64sAreSorted(days) {
		return nil, fmt.Errorf("samples for %q are not in chronological order", hikerID)
	}

	ip := &Interpolator{
		HikerID: hikerID,
		Year:    year,
		minDay:  days[0],
		maxDay:  days[len(days)-1],
		points:  len(samples),
	}
	if err := ip.lat.Fit(days, lats); err != nil {
		return nil, fmt.Errorf("fit latitude for %q: %w", hikerID, err)
	}
	if err := ip.lon.Fit(days, lons); err != nil {
		return nil, fmt.Errorf("fit longitude for %q: %w", hikerID, err)
	}
	return ip, nil
}

// At evaluates the path on day. Days outside the first and last sample are
// undefined and report false; they are never extrapolated or clamped.
func (ip *Interpolator) At(day int) (models.Position, bool) {
	x := float64(day)
	if x < ip.minDay || x > ip.maxDay {
		return models.Position{}, false
	}
	return models.Position{Latitude: ip.lat.Predict(x), Longitude: ip.lon.Predict(x)}, true
}

// Points returns how many samples the interpolant was fitted on
func (ip *Interpolator) Points() int {
	return ip.points
}

// Sample evaluates the path on every evaluation day of opts, skipping
// undefined days.
func (ip *Interpolator) Sample(opts Options) []models.TrajectoryPoint {
	out := make([]models.TrajectoryPoint, 0)
	for _, day := range opts.Days() {
		pos, ok := ip.At(day)
		if !ok {
			continue
		}
		out = append(out, models.TrajectoryPoint{
			Day:       day,
			HikerID:   ip.HikerID,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
		})
	}
	return out
}

// Build runs dedupe, jump filter and fit for one hiker-year.
func Build(hikerID string, year int, samples []Sample, opts Options) (*Interpolator, error) {
	opts = opts.normalized()
	filtered := FilterJumps(Dedupe(samples), opts.JumpThresholdKM)
	return Fit(hikerID, year, filtered)
}

// BuildAll fits an interpolator for every hiker in hikers that has journal
// positions in year. Hikers that cannot be fitted are left out and reported in
// the returned error slice; they never fail the whole year. Errors other than
// InsufficientTrajectoryDataError are wrapped in TrajectoryFitError.
func BuildAll(entries []models.JournalEntry, year int, hikers []string, opts Options, logger zerolog.Logger) (map[string]*Interpolator, []error) {
	byHiker := SamplesByHiker(entries, year)
	out := make(map[string]*Interpolator, len(hikers))
	var skipped []error

	for _, hiker := range hikers {
		samples, ok := byHiker[hiker]
		if !ok {
			skipped = append(skipped, &models.InsufficientTrajectoryDataError{HikerID: hiker, Year: year})
			continue
		}
		ip, err := Build(hiker, year, samples, opts)
		if err != nil {
			logger.Debug().Err(err).Str("hiker", hiker).Int("year", year).Msg("Hiker omitted from trajectories")
			var insufficient *models.InsufficientTrajectoryDataError
			if !errors.As(err, &insufficient) {
				err = &models.TrajectoryFitError{HikerID: hiker, Year: year, Err: err}
			}
			skipped = append(skipped, err)
			continue
		}
		logger.Trace().Str("hiker", hiker).Int("samples", ip.Points()).Msg("Trajectory fitted")
		out[hiker] = ip
	}

	logger.Debug().
		Int("year", year).
		Int("fitted", len(out)).
		Int("skipped", len(skipped)).
		Msg("Trajectories built")

	return out, skipped
}
