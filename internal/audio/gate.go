// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"sync"
)

// Gate blocks the worker between iterations while the engine is paused.
// The zero value is not usable; use NewGate.
type Gate struct {
	mu   sync.Mutex
	open chan struct{} // Closed while the gate is open.
}

// NewGate returns an open gate.
func NewGate() *Gate {
	ch := make(chan struct{})
	close(ch)
	return &Gate{open: ch}
}

// Open releases every waiter. Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
	default:
		close(g.open)
	}
}

// Close makes subsequent Wait calls block until Open. Closing a closed gate
// is a no-op.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
	}
}

// IsOpen reports whether Wait would return immediately.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
