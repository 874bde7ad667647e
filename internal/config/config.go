package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// Config keys, shared by the config file, the environment and CLI flags
const (
	KeyTolerance        = "tolerance"
	KeyPPM              = "ppm"
	KeySubtreeWindow    = "subtree_window"
	KeyProgressInterval = "progress_interval"
	KeyCacheSize        = "cache_size"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
)

const (
	envPrefix  = "MSTREE"
	configName = "mstree"
)

// Config holds all configuration for the application
type Config struct {
	Matching MatchingConfig
	Graph    GraphConfig
	Log      LogConfig
}

// MatchingConfig holds peak matching configuration
type MatchingConfig struct {
	Tolerance float64 // m/z units, or ppm when PPM is set
	PPM       bool
}

// GraphConfig holds scan graph reconstruction configuration
type GraphConfig struct {
	SubtreeWindow    int
	ProgressInterval int
	CacheSize        int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // console or json
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTolerance, 10.0)
	v.SetDefault(KeyPPM, true)
	v.SetDefault(KeySubtreeWindow, graph.DefaultSubtreeWindow)
	v.SetDefault(KeyProgressInterval, graph.DefaultProgressInterval)
	v.SetDefault(KeyCacheSize, source.DefaultCacheSize)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads configuration into v from defaults, an optional config file and
// MSTREE_ environment variables. An explicit path must exist; otherwise
// mstree.yaml in the working directory is read when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables override config file values
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var config Config
	config.Matching.Tolerance = v.GetFloat64(KeyTolerance)
	config.Matching.PPM = v.GetBool(KeyPPM)
	config.Graph.SubtreeWindow = v.GetInt(KeySubtreeWindow)
	config.Graph.ProgressInterval = v.GetInt(KeyProgressInterval)
	config.Graph.CacheSize = v.GetInt(KeyCacheSize)
	config.Log.Level = strings.ToLower(v.GetString(KeyLogLevel))
	config.Log.Format = strings.ToLower(v.GetString(KeyLogFormat))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Matching.Tolerance <= 0 {
		return fmt.Errorf("%s must be positive, got %g", KeyTolerance, c.Matching.Tolerance)
	}
	if c.Graph.SubtreeWindow <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeySubtreeWindow, c.Graph.SubtreeWindow)
	}
	if c.Graph.ProgressInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyProgressInterval, c.Graph.ProgressInterval)
	}
	if c.Graph.CacheSize < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyCacheSize, c.Graph.CacheSize)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid %s %q, must be console or json", KeyLogFormat, c.Log.Format)
	}
	return nil
}

// GraphOptions converts the graph settings to builder options
func (c *Config) GraphOptions() []graph.Option {
	return []graph.Option{
		graph.WithSubtreeWindow(c.Graph.SubtreeWindow),
		graph.WithProgressInterval(c.Graph.ProgressInterval),
	}
}

// Logger creates a logger writing to w, or stderr when w is nil
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Log.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
