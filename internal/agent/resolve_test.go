package agent

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fiacre/fswatch/pkg/db/store"
	"github.com/fiacre/fswatch/pkg/ingest"
	"github.com/fiacre/fswatch/pkg/sink"
	"github.com/mwantia/fabric/pkg/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingDeliverer) Deliver(_ context.Context, d sink.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, d.Path)
	return nil
}

func TestResolveMissingService(t *testing.T) {
	_, err := resolve[ingest.Deliverer](context.Background(), container.NewServiceContainer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no service registered")
}

func TestNewPipelineUsesContainerServices(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "http://127.0.0.1:1")
	agent := NewAgent(cfg)

	st, err := store.New(cfg.Store)
	require.NoError(t, err)
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	deliverer := &recordingDeliverer{}
	require.NoError(t, container.Register[store.GormStore](agent.sc,
		container.With[store.RecordStore](),
		container.WithInstance(st)))
	require.NoError(t, container.Register[recordingDeliverer](agent.sc,
		container.With[ingest.Deliverer](),
		container.WithInstance(deliverer)))

	pipeline, err := agent.newPipeline(ctx)
	require.NoError(t, err)

	path := filepath.Join(cfg.WatchDir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	assert.Equal(t, ingest.Delivered, pipeline.Ingest(ctx, path))
	assert.Equal(t, []string{path}, deliverer.paths)

	count, err := st.CountFileRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNewPipelineRequiresRegisteredServices(t *testing.T) {
	_, err := NewAgent(testConfig(t, "http://127.0.0.1:1")).newPipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record store")
}
