package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/fiacre/fswatch/pkg/db/models"
	"github.com/fiacre/fswatch/pkg/fingerprint"
	"github.com/fiacre/fswatch/pkg/ledger"
	"github.com/fiacre/fswatch/pkg/log"
	"github.com/fiacre/fswatch/pkg/metrics"
	"github.com/fiacre/fswatch/pkg/sink"
)

const (
	SourceScan  = "scan"
	SourceEvent = "event"
)

type Extractor interface {
	Extract(path string) (*fingerprint.Fingerprint, error)
}

type Ledger interface {
	Lookup(ctx context.Context, path string) (map[string]*models.FileRecord, error)
	Latest(ctx context.Context, path string) (*models.FileRecord, error)
	Record(ctx context.Context, record *models.FileRecord) error
	MarkDelivered(ctx context.Context, record *models.FileRecord) error
}

type Deliverer interface {
	Deliver(ctx context.Context, d sink.Delivery) error
}

type Config struct {
	DeliveryTimeout time.Duration
}

// Pipeline runs extract, dedup, record and deliver for one path at a time
// per path. Copies made by WithSource share the same per-path locks.
type Pipeline struct {
	extractor Extractor
	ledger    Ledger
	sink      Deliverer
	log       log.LoggerService
	locks     *KeyedMutex
	timeout   time.Duration
	source    string
}

func New(cfg Config, extractor Extractor, l Ledger, d Deliverer, logger log.LoggerService) *Pipeline {
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Pipeline{
		extractor: extractor,
		ledger:    l,
		sink:      d,
		log:       logger,
		locks:     NewKeyedMutex(),
		timeout:   timeout,
		source:    SourceScan,
	}
}

// WithSource returns a pipeline labelling its metrics with source.
func (p *Pipeline) WithSource(source string) *Pipeline {
	clone := *p
	clone.source = source
	return &clone
}

// Ingest delivers path unless the ledger already holds a delivered row
// for its current content hash.
func (p *Pipeline) Ingest(ctx context.Context, path string) Outcome {
	return p.observe(func() Outcome { return p.run(ctx, path, false) })
}

// Reingest handles a modification: only the most recent row for path is
// compared, so content that reverts to an older hash is delivered again.
func (p *Pipeline) Reingest(ctx context.Context, path string) Outcome {
	return p.observe(func() Outcome { return p.run(ctx, path, true) })
}

func (p *Pipeline) observe(fn func() Outcome) Outcome {
	start := time.Now()
	outcome := fn()

	metrics.IngestOutcomesTotal.WithLabelValues(p.source, outcome.String()).Inc()
	metrics.IngestDuration.WithLabelValues(p.source).Observe(time.Since(start).Seconds())
	return outcome
}

func (p *Pipeline) run(ctx context.Context, path string, modified bool) Outcome {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.log.Debug("Skipping %s: no longer exists", path)
			return SkippedUnreadable
		}
		p.log.Error("Failed to stat %s: %v", path, err)
		return Failed
	}
	if !info.Mode().IsRegular() {
		return SkippedUnmapped
	}

	unlock := p.locks.Lock(path)
	defer unlock()

	fp, err := p.extractor.Extract(path)
	if err != nil {
		if errors.Is(err, fingerprint.ErrNotFound) {
			p.log.Warn("No such file: %s: %v", path, err)
			return SkippedUnreadable
		}
		p.log.Error("Failed to fingerprint %s: %v", path, err)
		return Failed
	}

	if fp.MediaType == nil {
		p.log.Debug("Skipping %s: extension not in file-types", path)
		return SkippedUnmapped
	}

	existing, err := p.known(ctx, fp, modified)
	if err != nil {
		p.log.Error("Failed to query ledger for %s: %v", path, err)
		return Failed
	}

	record := ledger.NewRecord(fp)

	switch ledger.StateOf(existing) {
	case ledger.Done:
		p.log.Info("File %s (%s) was already posted", path, short(fp.ContentHash))
		return SkippedDuplicate
	case ledger.Pending:
		p.log.Info("Re-delivering %s (%s): previous delivery was not acknowledged", path, short(fp.ContentHash))
		record.ID = existing.ID
	default:
		if err := p.ledger.Record(ctx, record); err != nil {
			p.log.Error("Failed to record %s: %v", path, err)
			return Failed
		}
	}

	if err := p.deliver(ctx, record); err != nil {
		// The row stays pending and is delivered if the file comes back.
		if errors.Is(err, fs.ErrNotExist) {
			p.log.Warn("Skipping %s: removed before it could be delivered", path)
			return SkippedUnreadable
		}
		p.log.Error("Failed to deliver %s: %v", path, err)
		return Failed
	}

	if err := p.ledger.MarkDelivered(ctx, record); err != nil {
		p.log.Error("Delivered %s but failed to mark it: %v", path, err)
		return Failed
	}

	p.log.Info("Delivered: %s, %s, %d, %s, %s, %s",
		path, record.Owner, record.Size, short(record.ContentHash), *record.MediaType, record.Permissions)
	return Delivered
}

// known returns the row the dedup decision is based on, or nil.
func (p *Pipeline) known(ctx context.Context, fp *fingerprint.Fingerprint, modified bool) (*models.FileRecord, error) {
	if modified {
		latest, err := p.ledger.Latest(ctx, fp.Path)
		if err != nil || latest == nil || latest.ContentHash != fp.ContentHash {
			return nil, err
		}
		return latest, nil
	}

	known, err := p.ledger.Lookup(ctx, fp.Path)
	if err != nil {
		return nil, err
	}
	return known[fp.ContentHash], nil
}

func (p *Pipeline) deliver(ctx context.Context, record *models.FileRecord) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.sink.Deliver(ctx, sink.Delivery{
		Path:        record.Path,
		MediaType:   *record.MediaType,
		Owner:       record.Owner,
		ModifiedAt:  record.ModifiedAt,
		Permissions: record.Permissions,
		Size:        record.Size,
	})
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	metrics.DeliveriesTotal.WithLabelValues(deliveryStatus(err)).Inc()
	return err
}

func deliveryStatus(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "missing"
	}

	var deliveryErr *sink.DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Kind.String()
	}
	return "error"
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
