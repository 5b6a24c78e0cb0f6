package server

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	StoreTypePostgres = "postgres"
	StoreTypeSQLite   = "sqlite"
)

// MetadataServerConfig holds the ledger store configuration
type MetadataServerConfig struct {
	Type     string                 `mapstructure:"type"     yaml:"type"`
	Postgres MetadataPostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	SQLite   MetadataSQLiteConfig   `mapstructure:"sqlite"   yaml:"sqlite"`
}

// MetadataPostgresConfig holds PostgreSQL connection parameters
type MetadataPostgresConfig struct {
	Host     string `mapstructure:"dbhost"  yaml:"dbhost"`
	Port     int    `mapstructure:"dbport"  yaml:"dbport"`
	User     string `mapstructure:"dbuser"  yaml:"dbuser"`
	Password string `mapstructure:"dbpass"  yaml:"dbpass"`
	Name     string `mapstructure:"dbname"  yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

func (cfg MetadataServerConfig) Validate() error {
	switch cfg.Type {
	case StoreTypePostgres:
		if cfg.Postgres.Host == "" || cfg.Postgres.Name == "" || cfg.Postgres.User == "" {
			return fmt.Errorf("postgres store requires dbhost, dbname and dbuser")
		}
	case StoreTypeSQLite:
		if cfg.SQLite.Path == "" {
			return fmt.Errorf("sqlite store requires a path")
		}
	default:
		return fmt.Errorf("unknown store type '%s'", cfg.Type)
	}
	return nil
}

// DSN renders the libpq keyword/value connection string. Every value is
// quoted, so empty values and values with spaces or quotes survive parsing.
func (cfg MetadataPostgresConfig) DSN() string {
	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", strconv.Itoa(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Name},
		{"sslmode", cfg.SSLMode},
		{"TimeZone", "UTC"},
	}

	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, pair[0]+"="+quoteDSNValue(pair[1]))
	}
	return strings.Join(parts, " ")
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSNValue(value string) string {
	return "'" + dsnEscaper.Replace(value) + "'"
}
