package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fiacre/fswatch/pkg/db/store"
	"github.com/fiacre/fswatch/pkg/fingerprint"
	"github.com/fiacre/fswatch/pkg/ingest"
	"github.com/fiacre/fswatch/pkg/ledger"
	"github.com/fiacre/fswatch/pkg/log"
	"github.com/fiacre/fswatch/pkg/metrics"
	"github.com/fiacre/fswatch/pkg/scan"
	"github.com/fiacre/fswatch/pkg/sink"
	"github.com/fiacre/fswatch/pkg/watch"
	"github.com/mwantia/fabric/pkg/container"

	config "github.com/fiacre/fswatch/internal/config/server"
)

var ErrShutdownInterrupted = errors.New("shutdown timeout expired before in-flight work finished")

type Agent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	store   *store.GormStore
	sink    *sink.Client
	metrics *metrics.Server
}

func NewAgent(cfg *config.BaseServerConfig) *Agent {
	return &Agent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("fswatch", cfg.Log),
	}
}

func (a *Agent) setupServices(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	st, err := store.New(a.cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}
	if err := st.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect record store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return fmt.Errorf("failed to migrate record store: %w", err)
	}
	a.store = st

	client, err := newSinkClient(a.cfg.Sink)
	if err != nil {
		return err
	}
	a.sink = client

	errs := container.Errors{}

	a.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](a.sc,
		container.With[log.LoggerService](),
		container.WithInstance(a.log)))

	a.log.Debug("Registering 'RecordStore'...")
	errs.Add(container.Register[store.GormStore](a.sc,
		container.With[store.RecordStore](),
		container.WithInstance(a.store)))

	a.log.Debug("Registering 'Deliverer'...")
	errs.Add(container.Register[sink.Client](a.sc,
		container.With[ingest.Deliverer](),
		container.WithInstance(a.sink)))

	return errs.Errors()
}

func newSinkClient(cfg config.SinkServerConfig) (*sink.Client, error) {
	client, err := sink.New(cfg.BaseURL, cfg.Schema, cfg.SearchKey, cfg.AppKey,
		sink.WithAppName(cfg.AppName),
		sink.WithTimeout(cfg.GetTimeout()))
	if err != nil {
		return nil, fmt.Errorf("failed to create sink client: %w", err)
	}
	return client, nil
}

// named returns the registered logger scoped to name.
func (a *Agent) named(name string) log.LoggerService {
	logger, err := log.Resolve(context.Background(), a.sc, name)
	if err != nil {
		a.log.Warn("Failed to resolve logger '%s' from container: %v", name, err)
		return a.log.Named(name)
	}
	return logger
}

// newPipeline builds the ingest pipeline from the services registered in
// the container.
func (a *Agent) newPipeline(ctx context.Context) (*ingest.Pipeline, error) {
	records, err := resolve[store.RecordStore](ctx, a.sc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve record store: %w", err)
	}

	deliverer, err := resolve[ingest.Deliverer](ctx, a.sc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deliverer: %w", err)
	}

	media, unknown := fingerprint.NewMediaTable(a.cfg.FileTypes, a.cfg.MediaTypes)
	for _, ext := range unknown {
		a.log.Error("No media type known for extension '%s', files with it are skipped", ext)
	}

	return ingest.New(
		ingest.Config{DeliveryTimeout: a.cfg.Pipeline.GetDeliveryTimeout()},
		fingerprint.NewExtractor(media),
		ledger.New(records),
		deliverer,
		a.named("ingest")), nil
}

func (a *Agent) startMetrics() error {
	if a.cfg.Metrics.Address == "" {
		return nil
	}

	metrics.InitializeMetrics()
	srv, err := metrics.Listen(a.cfg.Metrics.Address)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", a.cfg.Metrics.Address, err)
	}
	a.metrics = srv

	errs := container.Errors{}
	errs.Add(container.Register[metrics.Server](a.sc, container.WithInstance(srv)))
	if err := errs.Errors(); err != nil {
		return err
	}

	a.wait.Add(1)
	go func() {
		defer a.wait.Done()
		if err := srv.Serve(); err != nil {
			a.log.Error("Metrics server failed: %v", err)
		}
	}()

	a.log.Info("Serving metrics on %s/metrics", srv.Addr())
	return nil
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (a *Agent) MetricsAddr() string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.metrics == nil {
		return ""
	}
	return a.metrics.Addr()
}

// Serve scans the watch directory once and then processes change events
// until ctx is cancelled or SIGINT/SIGTERM arrives. The change source is
// opened before the scan so nothing that happens during the scan is lost.
func (a *Agent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.mutex.Lock()
	if err := a.setupServices(ctx); err != nil {
		a.mutex.Unlock()
		a.cleanup(context.Background())
		return err
	}
	if err := a.startMetrics(); err != nil {
		a.mutex.Unlock()
		a.cleanup(context.Background())
		return err
	}
	a.mutex.Unlock()

	if err := a.sink.InitSchema(ctx); err != nil {
		a.cleanup(context.Background())
		return fmt.Errorf("failed to initialize sink schema: %w", err)
	}

	src, err := watch.NewFSNotifySource(a.cfg.WatchDir, a.cfg.Pipeline.QueueSize, a.named("watcher"))
	if err != nil {
		a.cleanup(context.Background())
		return fmt.Errorf("failed to watch %s: %w", a.cfg.WatchDir, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.run(ctx, src)
	}()

	var runErr error
	finished := false

	select {
	case runErr = <-done:
		finished = true
	case <-ctx.Done():
		a.log.Info("Shutting down, waiting up to %s for in-flight work", a.cfg.GetShutdownTimeout())
	}

	shutdown, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.GetShutdownTimeout())
	defer cancelShutdown()

	if !finished {
		select {
		case runErr = <-done:
		case <-shutdown.Done():
			a.log.Error("In-flight work did not finish within %s", a.cfg.GetShutdownTimeout())
			src.Close()
			return ErrShutdownInterrupted
		}
	}

	if err := src.Close(); err != nil {
		a.log.Warn("Failed to close watcher: %v", err)
	}

	if err := a.cleanup(shutdown); err != nil {
		return err
	}
	return runErr
}

func (a *Agent) run(ctx context.Context, src watch.Source) error {
	pipeline, err := a.newPipeline(ctx)
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(a.cfg.WatchDir, pipeline.WithSource(ingest.SourceScan), a.named("scan"))
	if _, err := scanner.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	coordinator := watch.NewCoordinator(watch.Config{
		Workers:   a.cfg.Pipeline.Workers,
		QueueSize: a.cfg.Pipeline.QueueSize,
		Rescan: func(ctx context.Context) error {
			_, err := scanner.Run(ctx)
			return err
		},
	}, pipeline.WithSource(ingest.SourceEvent), a.named("coordinator"))

	return coordinator.Run(ctx, src)
}

// Scan runs a single scan of the watch directory and returns its summary.
func (a *Agent) Scan(ctx context.Context) (scan.Summary, error) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.mutex.Lock()
	err := a.setupServices(ctx)
	a.mutex.Unlock()
	defer a.cleanup(context.Background())

	if err != nil {
		return scan.Summary{}, err
	}

	if err := a.sink.InitSchema(ctx); err != nil {
		return scan.Summary{}, fmt.Errorf("failed to initialize sink schema: %w", err)
	}

	pipeline, err := a.newPipeline(ctx)
	if err != nil {
		return scan.Summary{}, err
	}

	scanner := scan.NewScanner(a.cfg.WatchDir, pipeline, a.named("scan"))
	return scanner.Run(ctx)
}

// InitSchema only pushes the field mapping to the sink.
func (a *Agent) InitSchema(ctx context.Context) error {
	if err := a.cfg.Sink.Validate(); err != nil {
		return fmt.Errorf("invalid sink configuration: %w", err)
	}

	client, err := newSinkClient(a.cfg.Sink)
	if err != nil {
		return err
	}

	if err := client.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize sink schema: %w", err)
	}

	a.log.Info("Initialized schema '%s' at %s", a.cfg.Sink.Schema, client.MappingURL())
	return nil
}

func (a *Agent) cleanup(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.log.Warn("Failed to stop metrics server: %v", err)
		}
		a.metrics = nil
	}

	if err := a.sc.Cleanup(ctx); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Failed to close record store: %v", err)
		}
		a.store = nil
	}

	a.wait.Wait()
	return nil
}
