// Package safego launches background goroutines that cannot crash the process.
package safego

import (
	"context"
	"log/slog"
	"sync"
)

// Go runs fn in a new goroutine, recovering and logging any panic under the given name.
// Use it for all fire-and-forget work such as audit writes.
func Go(name string, fn func()) {
	go run(name, fn)
}

func run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background goroutine", "task", name, "panic", r)
		}
	}()
	fn()
}

// Group tracks fire-and-forget goroutines so shutdown can drain them.
// The zero value is ready to use.
type Group struct {
	wg sync.WaitGroup
}

// Go runs fn like the package-level Go and counts it until it returns
func (g *Group) Go(name string, fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(name, fn)
	}()
}

// Wait blocks until every tracked goroutine has returned or ctx ends
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
