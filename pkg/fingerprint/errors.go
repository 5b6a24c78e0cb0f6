package fingerprint

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	NotFound ErrorKind = iota + 1
	Unreadable
)

var (
	ErrNotFound   = errors.New("file not found")
	ErrUnreadable = errors.New("file unreadable")
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Unreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// ExtractionError reports why a fingerprint could not be computed.
type ExtractionError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is matches ErrNotFound and ErrUnreadable against the error kind.
func (e *ExtractionError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrUnreadable:
		return e.Kind == Unreadable
	}
	return false
}
