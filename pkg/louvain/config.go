package louvain

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages algorithm configuration using Viper
type Config struct {
	v *viper.Viper

	logger     *zerolog.Logger
	moveWriter io.Writer
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.max_levels", 10)
	v.SetDefault("algorithm.max_iterations", 100)
	v.SetDefault("algorithm.min_modularity_gain", 1e-9)
	v.SetDefault("algorithm.resolution", 1.0)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", false)

	v.SetDefault("analysis.track_moves", false)
	v.SetDefault("analysis.output_file", "")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for algorithm parameters
func (c *Config) MaxLevels() int             { return c.v.GetInt("algorithm.max_levels") }
func (c *Config) MaxIterations() int         { return c.v.GetInt("algorithm.max_iterations") }
func (c *Config) MinModularityGain() float64 { return c.v.GetFloat64("algorithm.min_modularity_gain") }
func (c *Config) Resolution() float64        { return c.v.GetFloat64("algorithm.resolution") }

func (c *Config) LogLevel() string     { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

func (c *Config) EnableMoveTracking() bool   { return c.v.GetBool("analysis.track_moves") }
func (c *Config) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// SetLogger makes CreateLogger return a child of logger instead of a fresh
// console logger.
func (c *Config) SetLogger(logger zerolog.Logger) {
	c.logger = &logger
}

// SetMoveWriter sends the move trace to w and enables move tracking.
func (c *Config) SetMoveWriter(w io.Writer) {
	c.moveWriter = w
	c.v.Set("analysis.track_moves", w != nil)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.logger != nil {
		return c.logger.Level(level).With().Str("component", "louvain").Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "louvain").Logger()
}

// params is a read-only snapshot of the config taken once per run so that
// concurrent runs never touch viper while iterating.
type params struct {
	maxLevels      int
	maxIterations  int
	minGain        float64
	resolution     float64
	enableProgress bool
}

func (c *Config) snapshot() params {
	p := params{
		maxLevels:      c.MaxLevels(),
		maxIterations:  c.MaxIterations(),
		minGain:        c.MinModularityGain(),
		resolution:     c.Resolution(),
		enableProgress: c.EnableProgress(),
	}
	if p.maxLevels <= 0 {
		p.maxLevels = 1
	}
	if p.maxIterations <= 0 {
		p.maxIterations = 1
	}
	if p.resolution <= 0 {
		p.resolution = 1.0
	}
	if p.minGain < 0 {
		p.minGain = 0
	}
	return p
}

// openMoveTracker returns the tracker requested by the config, or nil.
func (c *Config) openMoveTracker() (*MoveTracker, error) {
	if !c.EnableMoveTracking() {
		return nil, nil
	}
	if c.moveWriter != nil {
		return NewMoveTracker(c.moveWriter), nil
	}
	path := c.TrackingOutputFile()
	if path == "" {
		return nil, nil
	}
	return CreateMoveTracker(path)
}
