// Package groutine starts goroutines that carry a name, both as a pprof label and
// as a context value, so profiles and log entries can be tied to a worker.
package groutine

import (
	"context"
	"runtime/pprof"
)

const labelKey = "goroutine_name"

type nameKey struct{}

// Go runs fn on a new goroutine called name. The returned channel is closed once fn returns.
// A nil ctx is treated as context.Background().
func Go(ctx context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = pprof.WithLabels(ctx, pprof.Labels(labelKey, name))
	ctx = context.WithValue(ctx, nameKey{}, name)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pprof.SetGoroutineLabels(ctx)
		fn(ctx)
	}()
	return done
}

// Name returns the name given to Go, or "" outside a named goroutine.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(nameKey{}).(string)
	return name
}
