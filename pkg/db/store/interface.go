package store

import (
	"context"
	"errors"

	"github.com/fiacre/fswatch/pkg/db/models"
)

var ErrRecordNotFound = errors.New("file record not found")

// RecordStore defines the interface for ledger database operations
type RecordStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// File record operations
	CreateFileRecord(ctx context.Context, record *models.FileRecord) error
	ListFileRecords(ctx context.Context, path string) ([]models.FileRecord, error)
	UpdateFileRecord(ctx context.Context, path, contentHash string, patch models.Patch) error
	CountFileRecords(ctx context.Context) (int64, error)
}
