package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fiacre/fswatch/pkg/log"
	"github.com/fiacre/fswatch/pkg/metrics"
	"github.com/fsnotify/fsnotify"
)

// FSNotifySource adapts fsnotify to Source. Every directory below root is
// registered at construction, so events that happen while a scan is running
// queue up in the buffered channel until the coordinator starts reading.
type FSNotifySource struct {
	watcher *fsnotify.Watcher
	root    string
	log     log.LoggerService

	events chan Event
	errors chan error
	done   chan struct{}

	mu   sync.Mutex
	dirs map[string]struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func NewFSNotifySource(root string, queueSize int, logger log.LoggerService) (*FSNotifySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if queueSize <= 0 {
		queueSize = 4096
	}

	src := &FSNotifySource{
		watcher: watcher,
		root:    root,
		log:     logger,
		events:  make(chan Event, queueSize),
		errors:  make(chan error, 16),
		done:    make(chan struct{}),
		dirs:    make(map[string]struct{}),
	}

	if err := src.register(); err != nil {
		watcher.Close()
		return nil, err
	}

	src.wg.Add(1)
	go src.loop()

	return src, nil
}

func (s *FSNotifySource) Events() <-chan Event {
	return s.events
}

func (s *FSNotifySource) Errors() <-chan error {
	return s.errors
}

// Close stops the watcher and closes both channels.
func (s *FSNotifySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
		s.wg.Wait()

		close(s.events)
		close(s.errors)
		metrics.WatchedDirectories.Set(0)
	})
	return s.closeErr
}

// Directories returns the number of registered directories.
func (s *FSNotifySource) Directories() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs)
}

// register adds root and every directory below it without following links.
func (s *FSNotifySource) register() error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			s.log.Warn("Unable to watch %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if err := s.add(path); err != nil {
			if path == s.root {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			s.log.Warn("Unable to watch %s: %v", path, err)
			return fs.SkipDir
		}
		return nil
	})
}

func (s *FSNotifySource) add(dir string) error {
	if err := s.watcher.Add(dir); err != nil {
		return err
	}

	s.mu.Lock()
	s.dirs[dir] = struct{}{}
	metrics.WatchedDirectories.Set(float64(len(s.dirs)))
	s.mu.Unlock()

	s.log.Debug("Watching %s", dir)
	return nil
}

// forget drops dir and everything registered below it.
func (s *FSNotifySource) forget(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dirs[dir]; !ok {
		return false
	}

	prefix := dir + string(filepath.Separator)
	for path := range s.dirs {
		if path == dir || strings.HasPrefix(path, prefix) {
			delete(s.dirs, path)
		}
	}
	metrics.WatchedDirectories.Set(float64(len(s.dirs)))
	return true
}

func (s *FSNotifySource) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			ev, ok := s.translate(event)
			if !ok {
				continue
			}

			select {
			case s.events <- ev:
			case <-s.done:
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			metrics.WatcherErrors.Inc()
			err = translateError(err)
			if errors.Is(err, ErrOverflow) {
				select {
				case s.errors <- err:
				case <-s.done:
					return
				}
				continue
			}

			select {
			case s.errors <- err:
			default:
				s.log.Error("Dropping watcher error: %v", err)
			}
		}
	}
}

func translateError(err error) error {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	return err
}

func (s *FSNotifySource) translate(event fsnotify.Event) (Event, bool) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		ev := Event{Kind: Created, Path: path, IsDirectory: isDir(path)}
		if ev.IsDirectory {
			if err := s.add(path); err != nil {
				s.log.Warn("Unable to watch new directory %s: %v", path, err)
			}
		}
		return ev, true

	case event.Has(fsnotify.Write):
		return Event{Kind: Modified, Path: path, IsDirectory: isDir(path)}, true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Event{Kind: Deleted, Path: path, IsDirectory: s.forget(path)}, true

	default:
		return Event{}, false
	}
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
