package server

import "time"

// PipelineServerConfig tunes event dispatch and delivery bounds
type PipelineServerConfig struct {
	Workers         int    `mapstructure:"workers"          yaml:"workers"`
	QueueSize       int    `mapstructure:"queue_size"       yaml:"queue_size"`
	DeliveryTimeout string `mapstructure:"delivery_timeout" yaml:"delivery_timeout"`
}

type MetricsServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

func (cfg PipelineServerConfig) GetDeliveryTimeout() time.Duration {
	return parseDuration(cfg.DeliveryTimeout, 60*time.Second)
}
