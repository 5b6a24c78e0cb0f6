package watch

import (
	"context"
	"errors"
)

// ErrOverflow is reported on a Source's error channel when change
// notifications were lost and the tree has to be scanned again.
var ErrOverflow = errors.New("change notifications overflowed")

type Kind int

const (
	Created Kind = iota + 1
	Modified
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one change notification for a path below the watched root.
type Event struct {
	Kind        Kind
	Path        string
	IsDirectory bool
}

// Source delivers change events until it is closed. Events for one path
// arrive in the order they happened.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

type Handler interface {
	OnCreated(ctx context.Context, ev Event)
	OnModified(ctx context.Context, ev Event)
	OnDeleted(ctx context.Context, ev Event)
}
