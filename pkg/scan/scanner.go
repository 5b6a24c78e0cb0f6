package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fiacre/fswatch/pkg/ingest"
	"github.com/fiacre/fswatch/pkg/log"
	"github.com/fiacre/fswatch/pkg/metrics"
	"github.com/google/uuid"
)

type Ingester interface {
	Ingest(ctx context.Context, path string) ingest.Outcome
}

// Summary describes a finished or interrupted scan run.
type Summary struct {
	RunID    uuid.UUID
	Counts   map[ingest.Outcome]int
	Errors   int
	Duration time.Duration
}

func (s Summary) Files() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

func (s Summary) String() string {
	parts := make([]string, 0, len(ingest.Outcomes))
	for _, o := range ingest.Outcomes {
		parts = append(parts, fmt.Sprintf("%s=%d", o, s.Counts[o]))
	}
	return fmt.Sprintf("run %s: %d files (%s), %d errors in %s",
		s.RunID, s.Files(), strings.Join(parts, " "), s.Errors, s.Duration.Round(time.Millisecond))
}

// Scanner walks a tree once and hands every regular file to the pipeline.
type Scanner struct {
	root     string
	pipeline Ingester
	log      log.LoggerService
}

func NewScanner(root string, pipeline Ingester, logger log.LoggerService) *Scanner {
	return &Scanner{
		root:     root,
		pipeline: pipeline,
		log:      logger,
	}
}

// Run performs a single top-down walk without following symlinks. A failing
// subtree is logged and skipped. Cancellation is checked between entries; the
// file being ingested when ctx is cancelled still completes.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{
		RunID:  uuid.New(),
		Counts: make(map[ingest.Outcome]int, len(ingest.Outcomes)),
	}
	work := context.WithoutCancel(ctx)

	s.log.Info("Starting scan %s of %s", summary.RunID, s.root)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == s.root {
				return err
			}

			summary.Errors++
			metrics.ScanWalkErrors.Inc()
			s.log.Warn("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		summary.Counts[s.pipeline.Ingest(work, path)]++
		return nil
	})

	summary.Duration = time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("Scan %s interrupted: %s", summary.RunID, summary)
			return summary, err
		}
		return summary, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}

	metrics.ScanRunsTotal.Inc()
	metrics.ScanLastRunDuration.Set(summary.Duration.Seconds())
	s.log.Info("Finished scan %s", summary)
	return summary, nil
}
