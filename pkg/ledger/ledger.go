package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/fiacre/fswatch/pkg/db/models"
	"github.com/fiacre/fswatch/pkg/db/store"
	"github.com/fiacre/fswatch/pkg/fingerprint"
)

// State describes what the ledger knows about a (path, hash) pair.
type State int

const (
	// Unknown means no row exists for the pair.
	Unknown State = iota
	// Pending means a row exists but the sink never acknowledged it.
	Pending
	// Done means a row exists and was delivered.
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// StoreError wraps a failing record store call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Ledger maps file paths to their recorded fingerprints. It does no locking;
// callers serialize calls for the same path.
type Ledger struct {
	store store.RecordStore
	now   func() time.Time
}

func New(s store.RecordStore) *Ledger {
	return &Ledger{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns the known records for path keyed by content hash. When a
// hash occurs in several rows the most recent one wins.
func (l *Ledger) Lookup(ctx context.Context, path string) (map[string]*models.FileRecord, error) {
	records, err := l.store.ListFileRecords(ctx, path)
	if err != nil {
		return nil, &StoreError{Op: "lookup", Err: err}
	}

	known := make(map[string]*models.FileRecord, len(records))
	for i := range records {
		record := &records[i]
		if prev, ok := known[record.ContentHash]; ok && prev.Delivered && !record.Delivered {
			continue
		}
		known[record.ContentHash] = record
	}
	return known, nil
}

// Latest returns the most recently recorded row for path, or nil.
func (l *Ledger) Latest(ctx context.Context, path string) (*models.FileRecord, error) {
	records, err := l.store.ListFileRecords(ctx, path)
	if err != nil {
		return nil, &StoreError{Op: "latest", Err: err}
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[len(records)-1], nil
}

// Record appends a row for a new content state.
func (l *Ledger) Record(ctx context.Context, record *models.FileRecord) error {
	if err := l.store.CreateFileRecord(ctx, record); err != nil {
		return &StoreError{Op: "record", Err: err}
	}
	return nil
}

// MarkDelivered flags the (path, hash) row as acknowledged by the sink and
// refreshes its non-hash metadata.
func (l *Ledger) MarkDelivered(ctx context.Context, record *models.FileRecord) error {
	now := l.now()
	patch := models.Patch{
		Owner:       record.Owner,
		Group:       record.Group,
		Size:        record.Size,
		Permissions: record.Permissions,
		MediaType:   record.MediaType,
		ModifiedAt:  record.ModifiedAt,
		Delivered:   true,
		DeliveredAt: &now,
	}

	if err := l.store.UpdateFileRecord(ctx, record.Path, record.ContentHash, patch); err != nil {
		return &StoreError{Op: "mark delivered", Err: err}
	}

	record.Delivered = true
	record.DeliveredAt = &now
	return nil
}

// StateOf classifies a record found by Lookup or Latest.
func StateOf(record *models.FileRecord) State {
	switch {
	case record == nil:
		return Unknown
	case record.Delivered:
		return Done
	default:
		return Pending
	}
}

// NewRecord builds an undelivered row from a fingerprint.
func NewRecord(fp *fingerprint.Fingerprint) *models.FileRecord {
	return &models.FileRecord{
		Path:        fp.Path,
		ContentHash: fp.ContentHash,
		Owner:       fp.Owner,
		Group:       fp.Group,
		Size:        fp.Size,
		Permissions: fp.Permissions,
		MediaType:   fp.MediaType,
		ModifiedAt:  fp.ModifiedAt,
	}
}
