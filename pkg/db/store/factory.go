package store

import (
	"fmt"

	config "github.com/fiacre/fswatch/internal/config/server"
)

// New opens the record store selected by cfg.Type
func New(cfg config.MetadataServerConfig) (*GormStore, error) {
	switch cfg.Type {
	case config.StoreTypePostgres:
		return NewPostgresStore(PostgresConfig{DSN: cfg.Postgres.DSN()})
	case config.StoreTypeSQLite:
		return NewSQLiteStore(SQLiteConfig{Path: cfg.SQLite.Path})
	default:
		return nil, fmt.Errorf("unknown store type '%s'", cfg.Type)
	}
}
