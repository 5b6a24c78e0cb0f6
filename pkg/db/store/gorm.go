package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fiacre/fswatch/pkg/db/migrations"
	"github.com/fiacre/fswatch/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements RecordStore on any gorm dialect
type GormStore struct {
	db           *gorm.DB
	dialect      string
	maxOpenConns int
}

func openGorm(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	// Default to silent logging
	if level == 0 {
		level = logger.Silent
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// DB returns the underlying GORM database instance
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Dialect returns the name of the dialect, "sqlite" or "postgres"
func (s *GormStore) Dialect() string {
	return s.dialect
}

// Connect configures the connection pool and verifies connectivity
func (s *GormStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(min(s.maxOpenConns, 6))
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", s.dialect, err)
	}
	return nil
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs versioned database migrations
func (s *GormStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// File record operations

func (s *GormStore) CreateFileRecord(ctx context.Context, record *models.FileRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// ListFileRecords returns every row for path in insertion order.
func (s *GormStore) ListFileRecords(ctx context.Context, path string) ([]models.FileRecord, error) {
	var records []models.FileRecord
	err := s.db.WithContext(ctx).
		Where("path = ?", path).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

func (s *GormStore) UpdateFileRecord(ctx context.Context, path, contentHash string, patch models.Patch) error {
	result := s.db.WithContext(ctx).
		Model(&models.FileRecord{}).
		Where("path = ? AND content_hash = ?", path, contentHash).
		Updates(patch.Columns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s (%s)", ErrRecordNotFound, path, contentHash)
	}
	return nil
}

func (s *GormStore) CountFileRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.FileRecord{}).Count(&count).Error
	return count, err
}
