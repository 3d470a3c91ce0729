// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"runtime"
	"sync/atomic"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/modimage"
)

type (
	// Handle is a reference to a loaded module. It keeps its Context from
	// finishing an unload until Release is called or the Handle becomes
	// unreachable and is garbage collected.
	Handle struct {
		owner   *Context
		entry   *entry
		ref     *handleRef
		cleanup runtime.Cleanup
	}

	// handleRef is the reference a Handle holds on its Context. It lives
	// apart from the Handle so the garbage collector can drop it once the
	// Handle itself is unreachable.
	handleRef struct {
		released atomic.Bool
	}
)

// Module returns the descriptor the handle was loaded from.
func (h *Handle) Module() assets.Module { return h.entry.module }

// Origin tells whether the module came from the resolver or the fallback.
func (h *Handle) Origin() Origin { return h.entry.origin }

// Context returns the owning context.
func (h *Handle) Context() *Context { return h.owner }

// Image returns the loaded image. It fails once the handle is released or
// its context started unloading.
func (h *Handle) Image() (modimage.Image, error) {
	if h.ref.released.Load() {
		return nil, ErrHandleReleased
	}
	if st := h.owner.State(); !st.AcceptsLoads() {
		return nil, &StateError{Context: h.owner.name, Op: "access module", State: st, Err: ErrContextUnloading}
	}
	return h.entry.image, nil
}

// Release drops the handle's reference. Extra calls do nothing.
func (h *Handle) Release() {
	if h.ref.released.Load() {
		return
	}
	h.cleanup.Stop()
	h.owner.release(h.ref)
}

// Released reports whether Release was called.
func (h *Handle) Released() bool { return h.ref.released.Load() }
