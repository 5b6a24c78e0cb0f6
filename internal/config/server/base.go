package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var ErrNoWatchDir = errors.New("no watch directory set, use --init-dir or watch_dir in the config file")

type BaseServerConfig struct {
	WatchDir        string            `mapstructure:"watch_dir"        yaml:"watch_dir"`
	FileTypes       []string          `mapstructure:"file-types"       yaml:"file-types"`
	MediaTypes      map[string]string `mapstructure:"media_types"      yaml:"media_types,omitempty"`
	ShutdownTimeout string            `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Store    MetadataServerConfig `mapstructure:"store"    yaml:"store"`
	Sink     SinkServerConfig     `mapstructure:"sink"     yaml:"sink"`
	Pipeline PipelineServerConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Metrics  MetricsServerConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks everything the agent needs before it opens any connection.
// The watch directory is made absolute so ledger paths stay stable.
func (cfg *BaseServerConfig) Validate() error {
	if cfg.WatchDir == "" {
		return ErrNoWatchDir
	}

	abs, err := filepath.Abs(cfg.WatchDir)
	if err != nil {
		return fmt.Errorf("failed to resolve watch directory %s: %w", cfg.WatchDir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat watch directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch directory %s is not a directory", abs)
	}
	cfg.WatchDir = abs

	if len(cfg.FileTypes) == 0 {
		return errors.New("file-types must list at least one extension")
	}

	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}

	if err := cfg.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}

	if err := cfg.Sink.Validate(); err != nil {
		return fmt.Errorf("invalid sink configuration: %w", err)
	}

	return nil
}

// GetShutdownTimeout falls back to 60 seconds for unparsable values.
func (cfg *BaseServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(cfg.ShutdownTimeout, 60*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
