package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		WatchDir:        "",
		FileTypes:       []string{"pdf", "doc", "docx", "odt", "rtf", "html"},
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Store: MetadataServerConfig{
			Type: StoreTypePostgres,
			Postgres: MetadataPostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "watchdog",
				Name:    "watchdog",
				SSLMode: "disable",
			},
			SQLite: MetadataSQLiteConfig{
				Path: "fswatch.db",
			},
		},

		Sink: SinkServerConfig{
			BaseURL: "http://localhost:9200",
			Schema:  "files",
			AppName: "default",
			Timeout: "60s",
		},

		Pipeline: PipelineServerConfig{
			Workers:         4,
			QueueSize:       4096,
			DeliveryTimeout: "60s",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("watch_dir", defaults.WatchDir)
	viper.SetDefault("file-types", defaults.FileTypes)
	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("store.type", defaults.Store.Type)
	viper.SetDefault("store.postgres.dbhost", defaults.Store.Postgres.Host)
	viper.SetDefault("store.postgres.dbport", defaults.Store.Postgres.Port)
	viper.SetDefault("store.postgres.dbuser", defaults.Store.Postgres.User)
	viper.SetDefault("store.postgres.dbpass", defaults.Store.Postgres.Password)
	viper.SetDefault("store.postgres.dbname", defaults.Store.Postgres.Name)
	viper.SetDefault("store.postgres.sslmode", defaults.Store.Postgres.SSLMode)
	viper.SetDefault("store.sqlite.path", defaults.Store.SQLite.Path)

	viper.SetDefault("sink.app_key", defaults.Sink.AppKey)
	viper.SetDefault("sink.search_key", defaults.Sink.SearchKey)
	viper.SetDefault("sink.base_url", defaults.Sink.BaseURL)
	viper.SetDefault("sink.schema", defaults.Sink.Schema)
	viper.SetDefault("sink.app_name", defaults.Sink.AppName)
	viper.SetDefault("sink.timeout", defaults.Sink.Timeout)

	viper.SetDefault("pipeline.workers", defaults.Pipeline.Workers)
	viper.SetDefault("pipeline.queue_size", defaults.Pipeline.QueueSize)
	viper.SetDefault("pipeline.delivery_timeout", defaults.Pipeline.DeliveryTimeout)

	viper.SetDefault("metrics.address", defaults.Metrics.Address)
}
