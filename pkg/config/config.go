// Package config holds the service and CLI configuration. Values come from
// defaults, an optional YAML file and TRAIL_ environment variables, in
// increasing priority.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/parser"
	"github.com/gilchrisn/trail-community-service/pkg/pipeline"
	"github.com/gilchrisn/trail-community-service/pkg/stats"
	"github.com/gilchrisn/trail-community-service/pkg/trajectory"
)

// EnvPrefix is prepended to every environment override, e.g. TRAIL_SERVER_ADDRESS
const EnvPrefix = "TRAIL"

// Config wraps viper with typed getters
type Config struct {
	v *viper.Viper
}

// New creates a config with defaults and environment overrides applied
func New() *Config {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", int64(100<<20))

	v.SetDefault("data.path", "")
	v.SetDefault("data.format", string(parser.FormatAuto))
	v.SetDefault("data.sqlite_query", parser.DefaultSQLiteQuery)
	v.SetDefault("data.sheet", "")

	v.SetDefault("trajectory.jump_threshold_km", trajectory.DefaultJumpThresholdKM)
	v.SetDefault("trajectory.stride_days", trajectory.DefaultStrideDays)
	v.SetDefault("trajectory.last_day", trajectory.DefaultLastDay)

	v.SetDefault("analysis.years", []int{2019, 2020, 2021, 2022, 2023})
	v.SetDefault("analysis.representatives", 3)
	v.SetDefault("analysis.parallelism", 4)
	v.SetDefault("analysis.pagerank_damping", stats.DefaultDampingFactor)
	v.SetDefault("analysis.pagerank_tolerance", stats.DefaultTolerance)

	v.SetDefault("louvain.max_levels", 10)
	v.SetDefault("louvain.max_iterations", 100)
	v.SetDefault("louvain.resolution", 1.0)
	v.SetDefault("louvain.progress", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile merges a YAML/JSON/TOML config file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Viper exposes the underlying instance so CLI flags can be bound to keys
func (c *Config) Viper() *viper.Viper { return c.v }

// Set overrides a key
func (c *Config) Set(key string, value interface{}) { c.v.Set(key, value) }

// Server
func (c *Config) ServerAddress() string       { return c.v.GetString("server.address") }
func (c *Config) ReadTimeout() time.Duration  { return c.v.GetDuration("server.read_timeout") }
func (c *Config) WriteTimeout() time.Duration { return c.v.GetDuration("server.write_timeout") }
func (c *Config) RateLimitRPS() float64       { return c.v.GetFloat64("server.rate_limit_rps") }
func (c *Config) RateLimitBurst() int         { return c.v.GetInt("server.rate_limit_burst") }
func (c *Config) AllowedOrigins() []string    { return c.v.GetStringSlice("server.allowed_origins") }
func (c *Config) MaxUploadBytes() int64       { return c.v.GetInt64("server.max_upload_bytes") }

// Data
func (c *Config) DataPath() string    { return c.v.GetString("data.path") }
func (c *Config) SQLiteQuery() string { return c.v.GetString("data.sqlite_query") }
func (c *Config) Sheet() string       { return c.v.GetString("data.sheet") }

// DataFormat parses data.format
func (c *Config) DataFormat() (parser.Format, error) {
	return parser.ParseFormat(c.v.GetString("data.format"))
}

// Analysis
func (c *Config) Representatives() int       { return c.v.GetInt("analysis.representatives") }
func (c *Config) Parallelism() int           { return c.v.GetInt("analysis.parallelism") }
func (c *Config) PageRankDamping() float64   { return c.v.GetFloat64("analysis.pagerank_damping") }
func (c *Config) PageRankTolerance() float64 { return c.v.GetFloat64("analysis.pagerank_tolerance") }

// Years returns analysis.years, or nil when it cannot be parsed. Environment
// overrides arrive as one string such as "2019,2020" or "2019 2020".
func (c *Config) Years() []int {
	years, err := c.years()
	if err != nil {
		return nil
	}
	return years
}

func (c *Config) years() ([]int, error) {
	raw, ok := c.v.Get("analysis.years").(string)
	if !ok {
		return c.v.GetIntSlice("analysis.years"), nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		year, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid analysis.years entry %q: %w", f, err)
		}
		out = append(out, year)
	}
	return out, nil
}

// Logging
func (c *Config) LogLevel() string  { return c.v.GetString("logging.level") }
func (c *Config) LogFormat() string { return c.v.GetString("logging.format") }

// TrajectoryOptions builds the trajectory settings
func (c *Config) TrajectoryOptions() trajectory.Options {
	return trajectory.Options{
		JumpThresholdKM: c.v.GetFloat64("trajectory.jump_threshold_km"),
		StrideDays:      c.v.GetInt("trajectory.stride_days"),
		LastDay:         c.v.GetInt("trajectory.last_day"),
	}
}

// PipelineOptions builds the analyzer settings
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Trajectory:        c.TrajectoryOptions(),
		Representatives:   c.Representatives(),
		Parallelism:       c.Parallelism(),
		PageRankDamping:   c.PageRankDamping(),
		PageRankTolerance: c.PageRankTolerance(),
	}
}

// LouvainConfig builds the community detection settings. The detector logs
// through a child of logger.
func (c *Config) LouvainConfig(logger zerolog.Logger) *louvain.Config {
	lc := louvain.NewConfig()
	lc.Set("algorithm.max_levels", c.v.GetInt("louvain.max_levels"))
	lc.Set("algorithm.max_iterations", c.v.GetInt("louvain.max_iterations"))
	lc.Set("algorithm.resolution", c.v.GetFloat64("louvain.resolution"))
	lc.Set("logging.level", c.LogLevel())
	lc.Set("logging.enable_progress", c.v.GetBool("louvain.progress"))
	lc.SetLogger(logger)
	return lc
}

// LoaderOptions builds the journal loader settings
func (c *Config) LoaderOptions(logger zerolog.Logger) []parser.Option {
	return []parser.Option{
		parser.WithLogger(logger),
		parser.WithSQLiteQuery(c.SQLiteQuery()),
		parser.WithSheet(c.Sheet()),
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if _, err := c.DataFormat(); err != nil {
		return err
	}
	if c.RateLimitRPS() < 0 || c.RateLimitBurst() < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	opts := c.TrajectoryOptions()
	if opts.JumpThresholdKM <= 0 || opts.StrideDays <= 0 || opts.LastDay <= 0 {
		return fmt.Errorf("trajectory settings must be positive: %+v", opts)
	}
	if _, err := c.years(); err != nil {
		return err
	}
	if d := c.PageRankDamping(); d <= 0 || d >= 1 {
		return fmt.Errorf("analysis.pagerank_damping must be in (0, 1): %v", d)
	}
	if c.PageRankTolerance() <= 0 {
		return fmt.Errorf("analysis.pagerank_tolerance must be positive")
	}
	if c.v.GetFloat64("louvain.resolution") <= 0 {
		return fmt.Errorf("louvain.resolution must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel()); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	return nil
}

// CreateLogger builds the process logger from logging.level and
// logging.format ("console" or "json").
func (c *Config) CreateLogger(out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.LogFormat() == "json" {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()
}
