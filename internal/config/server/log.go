package server

import (
	"fmt"
	"strings"
)

var logLevels = []string{"DEBUG", "TRACE", "INFO", "WARN", "WARNING", "ERROR", "FATAL"}

// LogServerConfig controls the agent logger. Rotation applies only when
// File is set.
type LogServerConfig struct {
	Level      string                  `mapstructure:"level"       yaml:"level"`
	TimeFormat string                  `mapstructure:"time_format" yaml:"time_format"`
	File       string                  `mapstructure:"file"        yaml:"file"`
	NoColor    bool                    `mapstructure:"no_color"    yaml:"no_color"`
	JSON       bool                    `mapstructure:"json"        yaml:"json"`
	NoTerminal bool                    `mapstructure:"no_terminal" yaml:"no_terminal"`
	Rotation   LogServerRotationConfig `mapstructure:"rotation"    yaml:"rotation"`
}

// LogServerRotationConfig sizes are in megabytes, ages in days.
type LogServerRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"     yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"      yaml:"max_age"`
	Compress   bool `mapstructure:"compress"     yaml:"compress"`
}

func (cfg LogServerConfig) Validate() error {
	level := strings.ToUpper(strings.TrimSpace(cfg.Level))
	known := level == ""
	for _, l := range logLevels {
		known = known || l == level
	}
	if !known {
		return fmt.Errorf("unknown log level '%s'", cfg.Level)
	}

	if cfg.NoTerminal && cfg.File == "" {
		return fmt.Errorf("no_terminal requires a log file")
	}

	r := cfg.Rotation
	if r.MaxSize < 0 || r.MaxBackups < 0 || r.MaxAge < 0 {
		return fmt.Errorf("log rotation values must not be negative")
	}
	return nil
}
