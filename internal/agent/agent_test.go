package agent

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiacre/fswatch/pkg/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/fiacre/fswatch/internal/config/server"
)

type fakeSearchApp struct {
	mu       sync.Mutex
	mappings int
	files    []string
	requests []string
}

func (f *fakeSearchApp) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeSearchApp) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files...)
}

func newFakeSearchApp(t *testing.T) (*fakeSearchApp, *httptest.Server) {
	t.Helper()
	app := &fakeSearchApp{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.mu.Lock()
		defer app.mu.Unlock()

		reader, err := r.MultipartReader()
		if err != nil {
			app.mappings++
			app.requests = append(app.requests, "mapping")
			return
		}
		app.requests = append(app.requests, "index")
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "file" {
				_, params, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
				app.files = append(app.files, params["filename"])
			}
			io.Copy(io.Discard, part)
		}
	}))
	t.Cleanup(srv.Close)
	return app, srv
}

func testConfig(t *testing.T, sinkURL string) *config.BaseServerConfig {
	t.Helper()
	cfg := config.GetServerDefault()
	cfg.WatchDir = t.TempDir()
	cfg.FileTypes = []string{"pdf"}
	cfg.ShutdownTimeout = "5s"
	cfg.Log.NoTerminal = true
	cfg.Log.File = filepath.Join(t.TempDir(), "agent.log")
	cfg.Store.Type = config.StoreTypeSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Sink.BaseURL = sinkURL
	cfg.Sink.AppKey = "app"
	cfg.Sink.SearchKey = "search"
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.QueueSize = 64
	return &cfg
}

func TestScanCommand(t *testing.T) {
	app, srv := newFakeSearchApp(t)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WatchDir, "report.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WatchDir, "notes.txt"), []byte("notes"), 0o644))

	summary, err := NewAgent(cfg).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[ingest.Delivered])
	assert.Equal(t, 1, summary.Counts[ingest.SkippedUnmapped])

	summary, err = NewAgent(cfg).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[ingest.SkippedDuplicate], "ledger persists across runs")
	assert.Len(t, app.uploaded(), 1)
}

func TestScanInitializesSchemaFirst(t *testing.T) {
	app, srv := newFakeSearchApp(t)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WatchDir, "a.pdf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WatchDir, "b.pdf"), []byte("b"), 0o644))

	summary, err := NewAgent(cfg).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts[ingest.Delivered])
	assert.Equal(t, []string{"mapping", "index", "index"}, app.order())
}

func TestScanFailsWhenSinkRejectsSchema(t *testing.T) {
	var uploads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.MultipartReader(); err == nil {
			uploads.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WatchDir, "a.pdf"), []byte("a"), 0o644))

	_, err := NewAgent(cfg).Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
	assert.Zero(t, uploads.Load())
}

func TestScanRejectsMissingWatchDir(t *testing.T) {
	_, srv := newFakeSearchApp(t)
	cfg := testConfig(t, srv.URL)
	cfg.WatchDir = ""

	_, err := NewAgent(cfg).Scan(context.Background())
	assert.ErrorIs(t, err, config.ErrNoWatchDir)
}

func TestServeScansThenWatches(t *testing.T) {
	app, srv := newFakeSearchApp(t)
	cfg := testConfig(t, srv.URL)
	cfg.Metrics.Address = "127.0.0.1:0"

	existing := filepath.Join(cfg.WatchDir, "existing.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("before"), 0o644))

	agent := NewAgent(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Serve(ctx) }()

	require.Eventually(t, func() bool { return len(app.uploaded()) == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + agent.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "fswatch_ingest_outcomes_total")

	// Renamed into place so the watcher sees a single create.
	staged := filepath.Join(t.TempDir(), "created.pdf")
	require.NoError(t, os.WriteFile(staged, []byte("after"), 0o644))
	created := filepath.Join(cfg.WatchDir, "created.pdf")
	require.NoError(t, os.Rename(staged, created))

	require.Eventually(t, func() bool { return len(app.uploaded()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{existing, created}, app.uploaded())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	app.mu.Lock()
	assert.Equal(t, 1, app.mappings, "schema initialized once at startup")
	app.mu.Unlock()
}

func TestServeFailsWhenSinkRejectsSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	err := NewAgent(testConfig(t, srv.URL)).Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
	assert.False(t, errors.Is(err, ErrShutdownInterrupted))
}
