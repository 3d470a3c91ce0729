// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"context"
	"weak"
)

// Observer watches a context's unload without holding it or its modules.
type Observer struct {
	name string
	life *lifecycle
	ctx  weak.Pointer[Context]
}

func newObserver(c *Context) *Observer {
	return &Observer{name: c.name, life: c.life, ctx: weak.Make(c)}
}

// Name returns the observed context's name.
func (o *Observer) Name() string { return o.name }

// State returns the observed context's lifecycle state.
func (o *Observer) State() State { return State(o.life.state.Load()) }

// Unloaded reports whether the context reached StateUnloaded.
func (o *Observer) Unloaded() bool { return o.State() == StateUnloaded }

// Done is closed when the context reaches StateUnloaded.
func (o *Observer) Done() <-chan struct{} { return o.life.done }

// Wait blocks until the context is unloaded or ctx ends, returning ctx.Err()
// in the latter case.
func (o *Observer) Wait(ctx context.Context) error {
	select {
	case <-o.life.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context returns the observed context while something else still holds
// it, or nil after it was garbage collected.
func (o *Observer) Context() *Context { return o.ctx.Value() }
