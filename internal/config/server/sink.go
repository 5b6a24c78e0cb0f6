package server

import (
	"fmt"
	"time"
)

// SinkServerConfig identifies the search app that receives indexed files
type SinkServerConfig struct {
	AppKey    string `mapstructure:"app_key"    yaml:"app_key"`
	SearchKey string `mapstructure:"search_key" yaml:"search_key"`
	BaseURL   string `mapstructure:"base_url"   yaml:"base_url"`
	Schema    string `mapstructure:"schema"     yaml:"schema"`
	AppName   string `mapstructure:"app_name"   yaml:"app_name"`
	Timeout   string `mapstructure:"timeout"    yaml:"timeout"`
}

func (cfg SinkServerConfig) Validate() error {
	if cfg.SearchKey == "" {
		return fmt.Errorf("no search_key provided")
	}
	if cfg.AppKey == "" {
		return fmt.Errorf("no app_key provided")
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("no base_url provided")
	}
	if cfg.Schema == "" {
		return fmt.Errorf("no schema provided")
	}
	return nil
}

func (cfg SinkServerConfig) GetTimeout() time.Duration {
	return parseDuration(cfg.Timeout, 60*time.Second)
}
