package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fiacre/fswatch/pkg/ingest"
	"github.com/fiacre/fswatch/pkg/log"
	"github.com/fiacre/fswatch/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

var ErrNotIdle = errors.New("coordinator is not idle")

type State int32

const (
	Idle State = iota
	Watching
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Ingester interface {
	Ingest(ctx context.Context, path string) ingest.Outcome
	Reingest(ctx context.Context, path string) ingest.Outcome
}

type Config struct {
	Workers int
	// QueueSize bounds the number of events waiting across all paths.
	QueueSize int
	// Rescan is called when the source reports ErrOverflow. Nil disables it.
	Rescan func(ctx context.Context) error
}

// Coordinator hands events to a pool of workers. Each path has its own
// queue that at most one worker drains at a time, so events for one path are
// handled in arrival order and a path stuck on a slow delivery only holds
// the worker draining it.
type Coordinator struct {
	pipeline Ingester
	log      log.LoggerService
	workers  int
	capacity int
	rescan   func(ctx context.Context) error
	state    atomic.Int32
}

func NewCoordinator(cfg Config, pipeline Ingester, logger log.LoggerService) *Coordinator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	capacity := cfg.QueueSize
	if capacity < workers {
		capacity = workers
	}

	return &Coordinator{
		pipeline: pipeline,
		log:      logger,
		workers:  workers,
		capacity: capacity,
		rescan:   cfg.Rescan,
	}
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
	metrics.WatcherState.Set(float64(s))
}

// queues holds the pending events of every path that is queued or being
// drained. slots bounds the total and ready carries each path at most once.
type queues struct {
	mu     sync.Mutex
	byPath map[string][]Event
	slots  chan struct{}
	ready  chan string
}

func newQueues(capacity int) *queues {
	return &queues{
		byPath: make(map[string][]Event),
		slots:  make(chan struct{}, capacity),
		ready:  make(chan string, capacity),
	}
}

// push blocks while the queues are full. It returns false when ctx ends first.
func (q *queues) push(ctx context.Context, ev Event) bool {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	q.mu.Lock()
	pending, active := q.byPath[ev.Path]
	q.byPath[ev.Path] = append(pending, ev)
	q.mu.Unlock()

	// A path in ready holds at least one slot, so this send never blocks.
	if !active {
		q.ready <- ev.Path
	}
	return true
}

// pop takes the next event for path. Once the path has nothing left it is
// forgotten and the next push hands it to a worker again.
func (q *queues) pop(path string) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.byPath[path]
	if len(pending) == 0 {
		delete(q.byPath, path)
		return Event{}, false
	}

	ev := pending[0]
	q.byPath[path] = pending[1:]
	<-q.slots
	return ev, true
}

// Run consumes src until ctx is cancelled or the source closes its event
// channel. On cancellation each worker finishes the event it is working on
// and drops whatever is still queued.
func (c *Coordinator) Run(ctx context.Context, src Source) error {
	if !c.state.CompareAndSwap(int32(Idle), int32(Watching)) {
		return ErrNotIdle
	}
	metrics.WatcherState.Set(float64(Watching))
	defer c.setState(Stopped)

	c.log.Info("Watching for changes with %d workers", c.workers)

	q := newQueues(c.capacity)
	work := context.WithoutCancel(ctx)
	var discarded atomic.Int64
	var g errgroup.Group

	for range c.workers {
		g.Go(func() error {
			for path := range q.ready {
				for {
					ev, ok := q.pop(path)
					if !ok {
						break
					}
					if ctx.Err() != nil {
						discarded.Add(1)
						continue
					}
					c.dispatch(work, ev)
				}
			}
			return nil
		})
	}

	r := &rescans{run: c.rescan, log: c.log}
	c.consume(ctx, src, q, r)

	close(q.ready)
	err := g.Wait()
	r.wait()

	if n := discarded.Load(); n > 0 {
		c.log.Warn("Discarded %d queued events on shutdown", n)
	}
	c.log.Info("Stopped watching")
	return err
}

func (c *Coordinator) consume(ctx context.Context, src Source, q *queues, r *rescans) {
	events, errs := src.Events(), src.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.WatcherEventsTotal.WithLabelValues(ev.Kind.String()).Inc()

			if !q.push(ctx, ev) {
				return
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.log.Error("Watcher error: %v", err)
			if errors.Is(err, ErrOverflow) {
				r.request(ctx)
			}
		}
	}
}

// rescans runs at most one rescan at a time. Requests that arrive while one
// is running collapse into a single follow-up run.
type rescans struct {
	run func(ctx context.Context) error
	log log.LoggerService

	mu      sync.Mutex
	running bool
	again   bool
	wg      sync.WaitGroup
}

func (r *rescans) request(ctx context.Context) {
	if r.run == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.again = true
		return
	}
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			metrics.WatcherRescansTotal.Inc()
			r.log.Warn("Change notifications were dropped, rescanning the watch directory")
			if err := r.run(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("Rescan failed: %v", err)
			}

			r.mu.Lock()
			if !r.again || ctx.Err() != nil {
				r.running = false
				r.again = false
				r.mu.Unlock()
				return
			}
			r.again = false
			r.mu.Unlock()
		}
	}()
}

func (r *rescans) wait() {
	r.wg.Wait()
}

func (c *Coordinator) dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case Created:
		c.OnCreated(ctx, ev)
	case Modified:
		c.OnModified(ctx, ev)
	case Deleted:
		c.OnDeleted(ctx, ev)
	}
}

var _ Handler = (*Coordinator)(nil)

func (c *Coordinator) OnCreated(ctx context.Context, ev Event) {
	if ev.IsDirectory {
		c.log.Debug("Directory created: %s", ev.Path)
		return
	}
	c.pipeline.Ingest(ctx, ev.Path)
}

func (c *Coordinator) OnModified(ctx context.Context, ev Event) {
	if ev.IsDirectory {
		return
	}
	c.pipeline.Reingest(ctx, ev.Path)
}

func (c *Coordinator) OnDeleted(_ context.Context, ev Event) {
	c.log.Debug("Removed: %s", ev.Path)
}
