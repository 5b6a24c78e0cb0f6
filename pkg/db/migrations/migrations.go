package migrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiacre/fswatch/pkg/db/models"
	"gorm.io/gorm"
)

var ErrNothingToRollback = errors.New("no applied migrations to roll back")

// Migration is one reversible schema step. Versions are applied in
// ascending order and rolled back in descending order.
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

type migrationHistory struct {
	ID          uint   `gorm:"primaryKey"`
	Version     int    `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   *time.Time
}

type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: allMigrations(),
	}
}

// applied returns the history rows keyed by version, creating the history
// table on first use.
func (m *Migrator) applied(ctx context.Context) (map[int]migrationHistory, error) {
	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&migrationHistory{}); err != nil {
		return nil, fmt.Errorf("failed to create migration history table: %w", err)
	}

	var rows []migrationHistory
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}

	history := make(map[int]migrationHistory, len(rows))
	for _, row := range rows {
		history[row.Version] = row
	}
	return history, nil
}

// Migrate applies every migration not yet in the history, each in its own
// transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	history, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if _, ok := history[migration.Version]; ok {
			continue
		}

		if err := m.apply(ctx, migration); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
	}

	return nil
}

// Rollback reverts the highest applied version.
func (m *Migrator) Rollback(ctx context.Context) error {
	history, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		row, ok := history[migration.Version]
		if !ok {
			continue
		}

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&row).Error
		})
		if err != nil {
			return fmt.Errorf("rollback of migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
		return nil
	}

	return ErrNothingToRollback
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	history, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
		}
		if row, ok := history[migration.Version]; ok {
			at := time.Unix(row.AppliedAt, 0).UTC()
			status.Applied = true
			status.AppliedAt = &at
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return err
		}

		return tx.Create(&migrationHistory{
			Version:     migration.Version,
			Description: migration.Description,
		}).Error
	})
}

// fileRecordV1 is the ledger table before delivery tracking existed.
type fileRecordV1 struct {
	ID          uint    `gorm:"primaryKey"`
	Path        string  `gorm:"type:text;not null;index:idx_path_hash,priority:1"`
	ContentHash string  `gorm:"type:varchar(64);not null;index:idx_path_hash,priority:2"`
	Owner       string  `gorm:"type:text"`
	Group       string  `gorm:"column:group_name;type:text"`
	Size        int64   `gorm:"not null"`
	Permissions string  `gorm:"type:varchar(8)"`
	MediaType   *string `gorm:"type:text"`
	ModifiedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (fileRecordV1) TableName() string {
	return "file_records"
}

// allMigrations returns all migrations in order
func allMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Initial file record schema",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(&fileRecordV1{})
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(&fileRecordV1{})
			},
		},
		{
			Version:     2,
			Description: "Track sink delivery per file record",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(&models.FileRecord{})
			},
			Down: func(db *gorm.DB) error {
				for _, column := range []string{"DeliveredAt", "Delivered"} {
					if err := db.Migrator().DropColumn(&models.FileRecord{}, column); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
