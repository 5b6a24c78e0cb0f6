package sink

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSearchKey = errors.New("no search key provided")
	ErrMissingAppKey    = errors.New("no app key provided")
	ErrMissingBaseURL   = errors.New("no base url provided")
)

type ErrorKind int

const (
	// SinkRejected means the sink answered with a non-success status.
	SinkRejected ErrorKind = iota + 1
	// Unreachable means the request never produced a response.
	Unreachable
)

func (k ErrorKind) String() string {
	switch k {
	case SinkRejected:
		return "rejected"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

type DeliveryError struct {
	Kind   ErrorKind
	Status int
	Reason string
	URL    string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Kind == SinkRejected {
		return fmt.Sprintf("sink rejected %s: HTTP %d %s", e.URL, e.Status, e.Reason)
	}
	return fmt.Sprintf("sink unreachable %s: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
