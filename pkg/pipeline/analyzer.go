// Package pipeline runs the per-year analysis: mention graph, communities,
// statistics, trajectories and animation frames. Each call recomputes from
// the entry source; nothing is cached between calls, so years can be analyzed
// in parallel without coordination.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/trail-community-service/pkg/frames"
	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/mentions"
	"github.com/gilchrisn/trail-community-service/pkg/models"
	"github.com/gilchrisn/trail-community-service/pkg/stats"
	"github.com/gilchrisn/trail-community-service/pkg/trajectory"
)

// EntrySource provides the already-loaded, immutable journal table
type EntrySource interface {
	Entries() []models.JournalEntry
}

// Table is an in-memory EntrySource
type Table []models.JournalEntry

// Entries returns the table itself
func (t Table) Entries() []models.JournalEntry { return t }

// Observer receives one call per analyzed year. The metrics package
// implements it; a nil Observer is ignored.
type Observer interface {
	ObserveYear(year int, elapsed time.Duration, communities int, err error)
	ObserveOmittedHikers(year int, count int)
}

// Options tunes an Analyzer. Non-positive PageRank settings fall back to the
// stats defaults.
type Options struct {
	Trajectory        trajectory.Options
	Representatives   int
	Parallelism       int
	PageRankDamping   float64
	PageRankTolerance float64
}

// DefaultOptions returns the standard analysis setup
func DefaultOptions() Options {
	return Options{
		Trajectory:        trajectory.DefaultOptions(),
		Representatives:   3,
		Parallelism:       runtime.NumCPU(),
		PageRankDamping:   stats.DefaultDampingFactor,
		PageRankTolerance: stats.DefaultTolerance,
	}
}

// Analyzer runs the pipeline over one entry source
type Analyzer struct {
	source   EntrySource
	opts     Options
	louvain  *louvain.Config
	logger   zerolog.Logger
	observer Observer
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithOptions replaces the analysis options
func WithOptions(opts Options) Option {
	return func(a *Analyzer) { a.opts = opts }
}

// WithLouvainConfig sets the community detection config
func WithLouvainConfig(cfg *louvain.Config) Option {
	return func(a *Analyzer) { a.louvain = cfg }
}

// WithLogger sets the analyzer's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithObserver registers an Observer
func WithObserver(o Observer) Option {
	return func(a *Analyzer) { a.observer = o }
}

// NewAnalyzer creates an analyzer over source
func NewAnalyzer(source EntrySource, opts ...Option) *Analyzer {
	a := &Analyzer{
		source: source,
		opts:   DefaultOptions(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.louvain == nil {
		a.louvain = louvain.NewConfig()
		a.louvain.SetLogger(a.logger)
	}
	if a.opts.Parallelism <= 0 {
		a.opts.Parallelism = 1
	}
	if a.opts.PageRankDamping <= 0 || a.opts.PageRankDamping >= 1 {
		a.opts.PageRankDamping = stats.DefaultDampingFactor
	}
	if a.opts.PageRankTolerance <= 0 {
		a.opts.PageRankTolerance = stats.DefaultTolerance
	}
	return a
}

// YearAnalysis is everything computed for one year
type YearAnalysis struct {
	Year         int                                 `json:"year"`
	Graph        *mentions.Graph                     `json:"-"`
	Assignment   *louvain.Assignment                 `json:"assignment"`
	Summary      *stats.YearSummary                  `json:"summary"`
	Trajectories map[string]*trajectory.Interpolator `json:"-"`
	Omitted      []string                            `json:"omitted_hikers,omitempty"`
}

// Years lists the years present in the source
func (a *Analyzer) Years() []int {
	return models.Years(a.source.Entries())
}

// Communities detects the communities of year
func (a *Analyzer) Communities(year int) (*mentions.Graph, *louvain.Assignment, error) {
	g, err := mentions.Build(a.source.Entries(), year)
	if err != nil {
		return nil, nil, err
	}
	assignment, err := louvain.Detect(g, a.louvain)
	if err != nil {
		return nil, nil, err
	}
	return g, assignment, nil
}

// AnalyzeYear runs every stage for one year. EmptyYearError and
// EmptyGraphError are returned as is so callers can show "no data".
func (a *Analyzer) AnalyzeYear(year int) (result *YearAnalysis, err error) {
	start := time.Now()
	defer func() {
		communities := 0
		if result != nil {
			communities = result.Assignment.NumCommunities()
		}
		if a.observer != nil {
			a.observer.ObserveYear(year, time.Since(start), communities, err)
		}
	}()

	entries := a.source.Entries()
	g, assignment, err := a.Communities(year)
	if err != nil {
		return nil, err
	}

	summary := stats.Aggregate(assignment, entries)
	if a.opts.Representatives > 0 {
		summary.AttachRepresentatives(a.ranker().Representatives(g, assignment, a.opts.Representatives))
	}

	trajectories, skipped := trajectory.BuildAll(entries, year, g.Nodes, a.opts.Trajectory, a.logger)
	omitted := omittedHikers(skipped)
	if a.observer != nil {
		a.observer.ObserveOmittedHikers(year, len(omitted))
	}

	a.logger.Info().
		Int("year", year).
		Int("hikers", g.NumNodes()).
		Int("edges", g.NumEdges()).
		Int("communities", assignment.NumCommunities()).
		Float64("modularity", assignment.Modularity).
		Int("trajectories", len(trajectories)).
		Dur("elapsed", time.Since(start)).
		Msg("Year analyzed")

	return &YearAnalysis{
		Year:         year,
		Graph:        g,
		Assignment:   assignment,
		Summary:      summary,
		Trajectories: trajectories,
		Omitted:      omitted,
	}, nil
}

func (a *Analyzer) ranker() *stats.PageRankCalculator {
	return stats.NewPageRankCalculator().
		WithDampingFactor(a.opts.PageRankDamping).
		WithTolerance(a.opts.PageRankTolerance)
}

func omittedHikers(skipped []error) []string {
	out := make([]string, 0, len(skipped))
	for _, err := range skipped {
		var insufficient *models.InsufficientTrajectoryDataError
		var fit *models.TrajectoryFitError
		switch {
		case errors.As(err, &insufficient):
			out = append(out, insufficient.HikerID)
		case errors.As(err, &fit):
			out = append(out, fit.HikerID)
		}
	}
	return out
}

// AnalyzeYears analyzes years in parallel. The result is aligned with years;
// years without data get a nil entry instead of failing the batch. Any other
// error cancels the remaining work.
func (a *Analyzer) AnalyzeYears(ctx context.Context, years []int) ([]*YearAnalysis, error) {
	results := make([]*YearAnalysis, len(years))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Parallelism)
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.AnalyzeYear(year)
			if err != nil {
				if models.IsNoData(err) {
					a.logger.Warn().Int("year", year).Err(err).Msg("No data for year")
					return nil
				}
				return fmt.Errorf("year %d: %w", year, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Trend compares the community structure of years. Years without data are
// reported with zero communities.
func (a *Analyzer) Trend(ctx context.Context, years []int) (*stats.Trend, error) {
	results, err := a.AnalyzeYears(ctx, years)
	if err != nil {
		return nil, err
	}
	summaries := make([]*stats.YearSummary, len(years))
	assignments := make([]*louvain.Assignment, len(years))
	for i, res := range results {
		if res == nil {
			summaries[i] = stats.EmptySummary(years[i])
			continue
		}
		summaries[i] = res.Summary
		assignments[i] = res.Assignment
	}
	trend := stats.BuildTrend(summaries)
	trend.Continuity = stats.ChainContinuity(assignments)
	return trend, nil
}

// Statistics returns the community statistics of one year
func (a *Analyzer) Statistics(year int) (*stats.YearSummary, error) {
	res, err := a.AnalyzeYear(year)
	if err != nil {
		return nil, err
	}
	return res.Summary, nil
}

// Frames composes the animation of one community of one year.
func (a *Analyzer) Frames(year, communityID int) (*frames.FrameSet, error) {
	_, assignment, err := a.Communities(year)
	if err != nil {
		return nil, err
	}
	members, ok := assignment.MembersOf(communityID)
	if !ok {
		return nil, &frames.UnknownCommunityError{Year: year, CommunityID: communityID}
	}

	// Only members need a trajectory.
	trajectories, _ := trajectory.BuildAll(a.source.Entries(), year, members, a.opts.Trajectory, a.logger)
	return frames.Compose(year, assignment, trajectories, communityID, a.opts.Trajectory)
}

// AllFrames composes the animation of every community of one year, indexed by
// community id.
func (a *Analyzer) AllFrames(year int) ([]*frames.FrameSet, error) {
	g, assignment, err := a.Communities(year)
	if err != nil {
		return nil, err
	}
	trajectories, _ := trajectory.BuildAll(a.source.Entries(), year, g.Nodes, a.opts.Trajectory, a.logger)
	return frames.ComposeAll(year, assignment, trajectories, a.opts.Trajectory)
}

// Trajectories samples every hiker's path in year, keyed by hiker id.
// Hikers with too little data are absent.
func (a *Analyzer) Trajectories(year int) (map[string][]models.TrajectoryPoint, error) {
	g, err := mentions.Build(a.source.Entries(), year)
	if err != nil {
		return nil, err
	}
	fitted, _ := trajectory.BuildAll(a.source.Entries(), year, g.Nodes, a.opts.Trajectory, a.logger)

	out := make(map[string][]models.TrajectoryPoint, len(fitted))
	for hiker, ip := range fitted {
		out[hiker] = ip.Sample(a.opts.Trajectory)
	}
	return out, nil
}
