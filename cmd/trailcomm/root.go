package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/trail-community-service/pkg/config"
	"github.com/gilchrisn/trail-community-service/pkg/parser"
	"github.com/gilchrisn/trail-community-service/pkg/pipeline"
)

// Version is the current trailcomm version
var Version = "0.3.0"

// app is the state shared by every command of one invocation
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	configFile string
	output     string
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.New(), logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "trailcomm",
		Short: "Hiker community analysis of trail journals",
		Long: `trailcomm builds yearly mention graphs from a trail journal table, detects
hiker communities, reports their statistics and produces the per-day
positions used to animate each community along the trail.

Journal tables may be CSV (optionally gzip or zstd compressed), XLSX
workbooks or SQLite databases.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")
	flags.StringP("data", "d", "", "journal table path")
	flags.String("format", string(parser.FormatAuto), "table format: auto, csv, csv.gz, csv.zst, xlsx, sqlite")
	flags.String("sheet", "", "XLSX worksheet (default: first sheet)")
	flags.String("query", "", "SQL query for SQLite tables")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	v := a.cfg.Viper()
	for key, flag := range map[string]string{
		"data.path":         "data",
		"data.format":       "format",
		"data.sheet":        "sheet",
		"data.sqlite_query": "query",
		"logging.level":     "log-level",
		"logging.format":    "log-format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newAnalyzeCmd(a),
		newCommunitiesCmd(a),
		newStatsCmd(a),
		newFramesCmd(a),
		newGraphCmd(a),
		newTrajectoriesCmd(a),
		newTrendCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if a.configFile != "" {
		if err := a.cfg.LoadFromFile(a.configFile); err != nil {
			return err
		}
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	switch a.output {
	case "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
	a.logger = a.cfg.CreateLogger(cmd.ErrOrStderr())
	return nil
}

// loadAnalyzer reads the configured journal table and binds an analyzer to it
func (a *app) loadAnalyzer(ctx context.Context, extra ...pipeline.Option) (*pipeline.Analyzer, *parser.LoadResult, error) {
	path := a.cfg.DataPath()
	if path == "" {
		return nil, nil, fmt.Errorf("no journal table given: use --data or data.path")
	}
	format, err := a.cfg.DataFormat()
	if err != nil {
		return nil, nil, err
	}

	result, err := parser.NewLoader(a.cfg.LoaderOptions(a.logger)...).LoadFile(ctx, path, format)
	if err != nil {
		return nil, nil, err
	}
	analyzer := pipeline.NewAnalyzer(pipeline.Table(result.Entries), a.analyzerOptions(extra...)...)
	return analyzer, result, nil
}

func (a *app) analyzerOptions(extra ...pipeline.Option) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithOptions(a.cfg.PipelineOptions()),
		pipeline.WithLogger(a.logger),
		pipeline.WithLouvainConfig(a.cfg.LouvainConfig(a.logger)),
	}
	return append(opts, extra...)
}

// write prints v in the selected output format. YAML output reuses the JSON
// field names.
func (a *app) write(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if a.output == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

func parseYears(raw []string) ([]int, error) {
	var years []int
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			y, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid year %q", part)
			}
			years = append(years, y)
		}
	}
	return years, nil
}
