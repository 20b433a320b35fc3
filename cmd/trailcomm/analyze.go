package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/trail-community-service/pkg/frames"
	"github.com/gilchrisn/trail-community-service/pkg/models"
	"github.com/gilchrisn/trail-community-service/pkg/pipeline"
	"github.com/gilchrisn/trail-community-service/pkg/stats"
	"github.com/gilchrisn/trail-community-service/pkg/validation"
)

const modularityTolerance = 1e-6

// yearReport is one year of the analyze command output
type yearReport struct {
	Year     int                `json:"year"`
	NoData   bool               `json:"no_data,omitempty"`
	Summary  *stats.YearSummary `json:"summary,omitempty"`
	Omitted  []string           `json:"omitted_hikers,omitempty"`
	Problems []string           `json:"problems,omitempty"`
}

type analyzeReport struct {
	Source   string       `json:"source"`
	Rows     int          `json:"rows"`
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Years    []yearReport `json:"years"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		rawYears []string
		verify   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze every configured year",
		Long: `Analyze runs the whole pipeline for each year: mention graph, communities,
statistics with representatives, and trajectories. Years without entries are
reported as no_data.

With --verify the mention graph and partition of every year are checked and
the modularity is recomputed independently; any problem fails the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			years, err := a.years(rawYears)
			if err != nil {
				return err
			}
			analyzer, loaded, err := a.loadAnalyzer(cmd.Context())
			if err != nil {
				return err
			}
			results, err := analyzer.AnalyzeYears(cmd.Context(), years)
			if err != nil {
				return err
			}

			report := analyzeReport{
				Source:   loaded.Source,
				Rows:     loaded.Rows,
				Accepted: loaded.Accepted(),
				Rejected: len(loaded.Rejected),
			}
			failed := 0
			for i, res := range results {
				yr := yearReport{Year: years[i]}
				if res == nil {
					yr.NoData = true
					report.Years = append(report.Years, yr)
					continue
				}
				yr.Summary = res.Summary
				yr.Omitted = res.Omitted
				if verify {
					yr.Problems = verifyYear(res)
					failed += len(yr.Problems)
				}
				report.Years = append(report.Years, yr)
			}

			if err := a.write(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("verification found %d problems", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&rawYears, "years", "y", nil, "years to analyze (default: analysis.years)")
	cmd.Flags().BoolVar(&verify, "verify", false, "check graphs, partitions and modularity")
	return cmd
}

func verifyYear(res *pipeline.YearAnalysis) []string {
	var problems []string
	collect := func(err error) {
		if err == nil {
			return
		}
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				problems = append(problems, e.Error())
			}
			return
		}
		problems = append(problems, err.Error())
	}
	collect(validation.ValidateGraph(res.Graph))
	collect(validation.ValidatePartition(res.Graph, res.Assignment))
	collect(validation.CrossCheckModularity(res.Graph, res.Assignment, modularityTolerance))
	return problems
}

func (a *app) years(raw []string) ([]int, error) {
	years, err := parseYears(raw)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		years = a.cfg.Years()
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no years given: use --years or analysis.years")
	}
	return years, nil
}

func yearArg(raw string) (int, error) {
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return year, nil
}

func newCommunitiesCmd(a *app) *cobra.Command {
	var tracePath string
	cmd := &cobra.Command{
		Use:   "communities <year>",
		Short: "Detect the hiker communities of one year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := yearArg(args[0])
			if err != nil {
				return err
			}
			var extra []pipeline.Option
			if tracePath != "" {
				trace, err := os.Create(tracePath)
				if err != nil {
					return fmt.Errorf("failed to create move trace: %w", err)
				}
				defer trace.Close()

				lc := a.cfg.LouvainConfig(a.logger)
				lc.SetMoveWriter(trace)
				extra = append(extra, pipeline.WithLouvainConfig(lc))
			}
			analyzer, _, err := a.loadAnalyzer(cmd.Context(), extra...)
			if err != nil {
				return err
			}

			g, assignment, err := analyzer.Communities(year)
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), map[string]interface{}{
				"year":                 year,
				"num_hikers":           g.NumNodes(),
				"num_edges":            g.NumEdges(),
				"isolated_hikers":      g.Isolated(),
				"num_communities":      assignment.NumCommunities(),
				"modularity":           assignment.Modularity,
				"singleton_modularity": validation.SingletonModularity(g),
				"communities":          assignment.Partition(),
				"levels":               assignment.Levels,
			})
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace-moves", "", "write every node move of the detector to this file")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats <year>",
		Short: "Community sizes, activeness and representatives of one year",
		Long: `Stats reports every community of the year with its size, activeness, share
of the year's entries and PageRank representatives. With --top only the n
largest communities are listed, largest first; the year-level numbers still
cover all of them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := yearArg(args[0])
			if err != nil {
				return err
			}
			analyzer, _, err := a.loadAnalyzer(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := analyzer.Statistics(year)
			if err != nil {
				return err
			}
			if top > 0 {
				trimmed := *summary
				trimmed.Communities = summary.Largest(top)
				summary = &trimmed
			}
			return a.write(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "list only the n largest communities")
	return cmd
}

func newFramesCmd(a *app) *cobra.Command {
	var activeOnly, points bool
	cmd := &cobra.Command{
		Use:   "frames <year> [community]",
		Short: "Animation frames of one community or of all of them",
		Long: `Frames samples the interpolated position of every member of a community on
every evaluation day of the year. Without a community id every community of
the year is composed, in id order. Days on which no member has a position are
kept as empty frames unless --active-only is set.

With --points the frames are flattened into one list of positions per
community, ordered by day and then by member.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := yearArg(args[0])
			if err != nil {
				return err
			}
			analyzer, _, err := a.loadAnalyzer(cmd.Context())
			if err != nil {
				return err
			}

			var sets []*frames.FrameSet
			if len(args) == 2 {
				communityID, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid community id %q", args[1])
				}
				fs, err := analyzer.Frames(year, communityID)
				if err != nil {
					return err
				}
				sets = []*frames.FrameSet{fs}
			} else {
				sets, err = analyzer.AllFrames(year)
				if err != nil {
					return err
				}
			}

			for _, fs := range sets {
				if activeOnly {
					dropEmptyFrames(fs)
				}
			}
			if points {
				flat := make(map[int][]models.TrajectoryPoint, len(sets))
				for _, fs := range sets {
					flat[fs.CommunityID] = fs.Points()
				}
				return a.write(cmd.OutOrStdout(), flat)
			}
			if len(args) == 2 {
				return a.write(cmd.OutOrStdout(), sets[0])
			}
			return a.write(cmd.OutOrStdout(), sets)
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "drop frames without any position")
	cmd.Flags().BoolVar(&points, "points", false, "flatten frames into positions per community")
	return cmd
}

func dropEmptyFrames(fs *frames.FrameSet) {
	kept := make([]frames.Frame, 0, fs.ActiveFrames())
	for _, f := range fs.Frames {
		if len(f.Positions) > 0 {
			kept = append(kept, f)
		}
	}
	fs.Frames = kept
}

func newGraphCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "graph <year>",
		Short: "Community-colored mention graph of one year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := yearArg(args[0])
			if err != nil {
				return err
			}
			analyzer, _, err := a.loadAnalyzer(cmd.Context())
			if err != nil {
				return err
			}
			export, err := analyzer.Graph(year, reveal)
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), export)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "include real hiker ids")
	return cmd
}

func newTrajectoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trajectories <year>",
		Short: "Sampled path of every hiker of one year",
		Long: `Trajectories samples every hiker's interpolated path on the evaluation days.

Positions more than trajectory.jump_threshold_km from the previous kept position
are dropped before interpolation. Hikers who legitimately cover a long distance
between two entries (a ride around a closed section, for example) lose every
position after the jump, and hikers left with fewer than two positions are
absent from the output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := yearArg(args[0])
			if err != nil {
				return err
			}
			analyzer, _, err := a.loadAnalyzer(cmd.Context())
			if err != nil {
				return err
			}
			paths, err := analyzer.Trajectories(year)
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), paths)
		},
	}
}

func newTrendCmd(a *app) *cobra.Command {
	var rawYears []string
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Compare community structure across years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			years, err := a.years(rawYears)
			if err != nil {
				return err
			}
			analyzer, _, err := a.loadAnalyzer(cmd.Context())
			if err != nil {
				return err
			}
			trend, err := analyzer.Trend(cmd.Context(), years)
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), trend)
		},
	}
	cmd.Flags().StringSliceVarP(&rawYears, "years", "y", nil, "years to compare (default: analysis.years)")
	return cmd
}
