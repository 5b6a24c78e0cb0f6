package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	config "github.com/fiacre/fswatch/internal/config/server"
	"github.com/fiacre/fswatch/pkg/db/store"
	"github.com/fiacre/fswatch/pkg/fingerprint"
	"github.com/fiacre/fswatch/pkg/ledger"
	"github.com/fiacre/fswatch/pkg/log"
	"github.com/fiacre/fswatch/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu         sync.Mutex
	deliveries []sink.Delivery
	err        error
}

func (f *fakeSink) Deliver(_ context.Context, d sink.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.deliveries = append(f.deliveries, d)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

func (f *fakeSink) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fixture struct {
	pipeline *Pipeline
	ledger   *ledger.Ledger
	sink     *fakeSink
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })

	media, unknown := fingerprint.NewMediaTable([]string{"pdf", "txt"}, nil)
	require.Empty(t, unknown)

	l := ledger.New(s)
	fs := &fakeSink{}
	logger := log.NewLoggerServiceWithWriter("ingest", config.LogServerConfig{Level: "DEBUG"}, io.Discard)

	return &fixture{
		pipeline: New(Config{}, fingerprint.NewExtractor(media), l, fs, logger),
		ledger:   l,
		sink:     fs,
		dir:      t.TempDir(),
	}
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestDeliversOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := f.write(t, "report.pdf", "quarterly")

	assert.Equal(t, Delivered, f.pipeline.Ingest(ctx, path))
	assert.Equal(t, SkippedDuplicate, f.pipeline.Ingest(ctx, path))
	assert.Equal(t, SkippedDuplicate, f.pipeline.Reingest(ctx, path))

	require.Equal(t, 1, f.sink.count())
	d := f.sink.deliveries[0]
	assert.Equal(t, path, d.Path)
	assert.Equal(t, "application/pdf", d.MediaType)
	assert.Equal(t, "0644", d.Permissions)
	assert.Equal(t, int64(len("quarterly")), d.Size)

	latest, err := f.ledger.Latest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ledger.Done, ledger.StateOf(latest))
}

func TestIngestContentChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := f.write(t, "notes.txt", "v1")

	require.Equal(t, Delivered, f.pipeline.Ingest(ctx, path))

	f.write(t, "notes.txt", "v2")
	require.Equal(t, Delivered, f.pipeline.Reingest(ctx, path))

	known, err := f.ledger.Lookup(ctx, path)
	require.NoError(t, err)
	assert.Len(t, known, 2)
	assert.Equal(t, 2, f.sink.count())
}

func TestReingestRevertedContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := f.write(t, "notes.txt", "A")

	require.Equal(t, Delivered, f.pipeline.Ingest(ctx, path))
	f.write(t, "notes.txt", "B")
	require.Equal(t, Delivered, f.pipeline.Reingest(ctx, path))
	f.write(t, "notes.txt", "A")

	assert.Equal(t, SkippedDuplicate, f.pipeline.Ingest(ctx, path), "scan compares against every known hash")
	assert.Equal(t, Delivered, f.pipeline.Reingest(ctx, path), "modification compares against the latest hash only")
	assert.Equal(t, 3, f.sink.count())
}

func TestIngestSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	unmapped := f.write(t, "archive.tar", "tarball")
	assert.Equal(t, SkippedUnmapped, f.pipeline.Ingest(ctx, unmapped))

	assert.Equal(t, SkippedUnmapped, f.pipeline.Ingest(ctx, f.dir), "directories are not files")
	assert.Equal(t, SkippedUnreadable, f.pipeline.Ingest(ctx, filepath.Join(f.dir, "gone.pdf")))

	assert.Zero(t, f.sink.count())

	known, err := f.ledger.Lookup(ctx, unmapped)
	require.NoError(t, err)
	assert.Empty(t, known)
}

func TestIngestSymlinkIsNotFollowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.write(t, "real.pdf", "content")
	link := filepath.Join(f.dir, "link.pdf")
	require.NoError(t, os.Symlink(target, link))

	assert.Equal(t, SkippedUnmapped, f.pipeline.Ingest(ctx, link))
	assert.Zero(t, f.sink.count())
}

func TestIngestRedeliversPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := f.write(t, "report.pdf", "quarterly")

	f.sink.fail(&sink.DeliveryError{Kind: sink.SinkRejected, Status: 503, Reason: "Service Unavailable"})
	require.Equal(t, Failed, f.pipeline.Ingest(ctx, path))

	latest, err := f.ledger.Latest(ctx, path)
	require.NoError(t, err)
	require.Equal(t, ledger.Pending, ledger.StateOf(latest))

	f.sink.fail(nil)
	assert.Equal(t, Delivered, f.pipeline.Ingest(ctx, path))
	assert.Equal(t, SkippedDuplicate, f.pipeline.Ingest(ctx, path))

	known, err := f.ledger.Lookup(ctx, path)
	require.NoError(t, err)
	require.Len(t, known, 1, "re-delivery reuses the pending row")
	assert.Equal(t, 1, f.sink.count())
}

func TestIngestFileRemovedBeforeDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := f.write(t, "report.pdf", "quarterly")

	_, openErr := os.Open(filepath.Join(f.dir, "gone.pdf"))
	require.ErrorIs(t, openErr, os.ErrNotExist)
	f.sink.fail(fmt.Errorf("failed to open %s for delivery: %w", path, openErr))
	assert.Equal(t, SkippedUnreadable, f.pipeline.Ingest(ctx, path))

	latest, err := f.ledger.Latest(ctx, path)
	require.NoError(t, err)
	require.Equal(t, ledger.Pending, ledger.StateOf(latest))

	f.sink.fail(nil)
	assert.Equal(t, Delivered, f.pipeline.Ingest(ctx, path))
	assert.Equal(t, 1, f.sink.count())
}

func TestIngestConcurrentSamePath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := f.write(t, "report.pdf", "quarterly")

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = f.pipeline.WithSource(SourceEvent).Ingest(ctx, path)
		}(i)
	}
	wg.Wait()

	delivered := 0
	for _, o := range outcomes {
		if o == Delivered {
			delivered++
		}
	}
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, f.sink.count())
	assert.Zero(t, f.pipeline.locks.Len())
}

func TestDeliveryStatus(t *testing.T) {
	assert.Equal(t, "ok", deliveryStatus(nil))
	assert.Equal(t, "rejected", deliveryStatus(&sink.DeliveryError{Kind: sink.SinkRejected}))
	assert.Equal(t, "unreachable", deliveryStatus(&sink.DeliveryError{Kind: sink.Unreachable}))
	assert.Equal(t, "missing", deliveryStatus(fmt.Errorf("failed to open: %w", os.ErrNotExist)))
	assert.Equal(t, "error", deliveryStatus(errors.New("open: permission denied")))
}

func TestOutcomeString(t *testing.T) {
	var names []string
	for _, o := range Outcomes {
		names = append(names, o.String())
	}
	assert.Equal(t, []string{"delivered", "skipped_duplicate", "skipped_unreadable", "skipped_unmapped", "failed"}, names)
}
