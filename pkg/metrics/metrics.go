package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion metrics
var (
	IngestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fswatch_ingest_outcomes_total",
			Help: "Total number of ingest calls by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fswatch_ingest_duration_seconds",
			Help:    "Duration of a single ingest call in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"source"},
	)
)

// Sink metrics
var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fswatch_deliveries_total",
			Help: "Total number of sink deliveries by status",
		},
		[]string{"status"}, // "ok", "rejected", "unreachable", "missing", "error"
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fswatch_delivery_duration_seconds",
			Help:    "Sink delivery duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fswatch_scan_runs_total",
			Help: "Total number of completed scan runs",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fswatch_scan_last_run_duration_seconds",
			Help: "Duration of the last scan run in seconds",
		},
	)

	ScanWalkErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fswatch_scan_walk_errors_total",
			Help: "Total number of subtrees skipped because of traversal errors",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fswatch_watcher_events_total",
			Help: "Total number of change events by kind",
		},
		[]string{"kind"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fswatch_watcher_errors_total",
			Help: "Total number of change notification errors",
		},
	)

	WatcherRescansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fswatch_watcher_rescans_total",
			Help: "Total number of scans started because the change notifier dropped events",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fswatch_watched_directories",
			Help: "Number of directories registered with the change notifier",
		},
	)

	WatcherState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fswatch_watcher_state",
			Help: "Event coordinator state (0 = idle, 1 = watching, 2 = stopped)",
		},
	)
)

// InitializeMetrics pre-populates label combinations so every series is
// exported from the first scrape.
func InitializeMetrics() {
	for _, source := range []string{"scan", "event"} {
		for _, outcome := range []string{"delivered", "skipped_duplicate", "skipped_unreadable", "skipped_unmapped", "failed"} {
			IngestOutcomesTotal.WithLabelValues(source, outcome)
		}
		IngestDuration.WithLabelValues(source)
	}
	for _, status := range []string{"ok", "rejected", "unreachable", "missing", "error"} {
		DeliveriesTotal.WithLabelValues(status)
	}
	for _, kind := range []string{"created", "modified", "deleted"} {
		WatcherEventsTotal.WithLabelValues(kind)
	}
}

// Server exposes the default registry on /metrics.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

func Listen(address string) (*Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		ln:  ln,
	}, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until Shutdown is called.
func (s *Server) Serve() error {
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
