package log

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/mwantia/fabric/pkg/container"
)

var ErrNoLogger = errors.New("no LoggerService registered")

// Resolve returns the container's LoggerService, scoped to name when not empty.
func Resolve(ctx context.Context, sc *container.ServiceContainer, name string) (LoggerService, error) {
	ok, resolved := sc.ResolveByType(ctx, reflect.TypeOf((*LoggerService)(nil)).Elem())
	if !ok {
		return nil, ErrNoLogger
	}

	logger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved %T is not a LoggerService", resolved)
	}

	if name == "" {
		return logger, nil
	}
	return logger.Named(name), nil
}
