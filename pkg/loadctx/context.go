// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/modimage"
	"github.com/pullpkg/pullpkg/pkg/resolver"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

const (
	// OriginResolved marks modules found through the resolver.
	OriginResolved Origin = iota
	// OriginFallback marks modules found through the host's ModuleLookup.
	OriginFallback
)

type (
	// Origin tells where a loaded module was found.
	Origin int

	// Option configures a Context.
	Option func(*Context)

	// LoadedModule is a non-owning snapshot of one cached module.
	LoadedModule struct {
		Module assets.Module
		Format modimage.Format
		Origin Origin
	}

	// ExportMatch is a loaded module exporting a looked-up symbol.
	ExportMatch struct {
		Module assets.Module
		Symbol string
	}

	// Context loads modules of one resolved package set, memoizes them per
	// (name, version), and in collectible mode can be unloaded.
	//
	// Every Handle returned by a load holds a reference. After RequestUnload
	// the context reaches StateUnloaded exactly when the last outstanding
	// Handle is released or collected; at that point images and the loader
	// are closed.
	Context struct {
		name        string
		collectible bool
		resolver    *resolver.Resolver
		fallback    ModuleLookup
		loader      modimage.Loader
		logger      *log.Logger
		life        *lifecycle

		mu      sync.Mutex
		entries map[moduleKey]*entry
		order   []*entry
		refs    int
		owned   bool
	}

	// lifecycle is the part of a Context an Observer may keep alive.
	lifecycle struct {
		state atomic.Int32
		done  chan struct{}
	}

	moduleKey struct {
		name    string
		version string
	}

	entry struct {
		module assets.Module
		origin Origin
		image  modimage.Image
	}

	loaderCloser interface {
		Close(ctx context.Context) error
	}
)

// String returns the origin name.
func (o Origin) String() string {
	if o == OriginFallback {
		return "fallback"
	}
	return "resolved"
}

// WithCollectible makes the context unloadable.
func WithCollectible() Option {
	return func(c *Context) { c.collectible = true }
}

// WithFallback sets the host module set consulted when the resolver misses.
func WithFallback(lookup ModuleLookup) Option {
	return func(c *Context) { c.fallback = lookup }
}

// WithLoader replaces the default modimage.FileLoader.
func WithLoader(l modimage.Loader) Option {
	return func(c *Context) { c.loader = l }
}

// WithLogger sets the logger for load and unload events.
func WithLogger(l *log.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a context named name over the packages known to r.
// A nil resolver behaves like an empty package set.
func New(name string, r *resolver.Resolver, opts ...Option) *Context {
	if r == nil {
		r = resolver.New(nil)
	}
	c := &Context{
		name:     name,
		resolver: r,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		life:     &lifecycle{done: make(chan struct{})},
		entries:  make(map[moduleKey]*entry),
		refs:     1,
		owned:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loader == nil {
		c.loader = modimage.NewLoader()
	}
	c.logger = c.logger.With("context", name)
	return c
}

// Name returns the context name.
func (c *Context) Name() string { return c.name }

// Collectible reports whether the context can be unloaded.
func (c *Context) Collectible() bool { return c.collectible }

// State returns the current lifecycle state.
func (c *Context) State() State { return State(c.life.state.Load()) }

// Resolver returns the resolver the context loads through.
func (c *Context) Resolver() *resolver.Resolver { return c.resolver }

// Observe returns a handle that reports unload progress without keeping
// the context's modules alive.
func (c *Context) Observe() *Observer {
	return newObserver(c)
}

// LoadModule loads the highest-versioned module named name at or above
// minVersion (nil accepts any version). When the resolver has no candidate
// the fallback ModuleLookup is consulted by name alone.
func (c *Context) LoadModule(ctx context.Context, name string, minVersion *versioning.Version) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLoadLocked("load module"); err != nil {
		return nil, err
	}

	if m, ok := c.resolver.ResolveMinimumVersion(name, minVersion); ok {
		return c.loadLocked(ctx, m, OriginResolved)
	}

	constraint := "*"
	if minVersion != nil {
		constraint = ">= " + minVersion.String()
	}
	if c.fallback != nil {
		if path, ok := c.fallback.Find(name); ok {
			c.logger.Debug("resolver miss, using fallback", "module", name, "path", path)
			return c.loadLocked(ctx, assets.Module{Name: name, Path: path}, OriginFallback)
		}
	}
	return nil, &ModuleNotFoundError{Name: name, Constraint: constraint}
}

// LoadModuleInRange loads the first module in declaration order named name
// whose version satisfies rng. It never consults the fallback.
func (c *Context) LoadModuleInRange(ctx context.Context, name string, rng versioning.Range) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLoadLocked("load module"); err != nil {
		return nil, err
	}

	m, ok := c.resolver.ResolveRange(name, rng)
	if !ok {
		return nil, &ModuleNotFoundError{Name: name, Constraint: rng.String()}
	}
	return c.loadLocked(ctx, m, OriginResolved)
}

// LoadDescriptor loads m directly, bypassing resolution.
func (c *Context) LoadDescriptor(ctx context.Context, m assets.Module) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLoadLocked("load module"); err != nil {
		return nil, err
	}
	return c.loadLocked(ctx, m, OriginResolved)
}

// LoadAll loads every resolved module in package-then-module order. The
// first failure aborts the call; handles acquired by it are released and
// the returned *LoadError names the failing module.
func (c *Context) LoadAll(ctx context.Context) ([]*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLoadLocked("load all"); err != nil {
		return nil, err
	}

	modules := c.resolver.Modules()
	handles := make([]*Handle, 0, len(modules))
	for _, m := range modules {
		h, err := c.loadLocked(ctx, m, OriginResolved)
		if err != nil {
			for _, acquired := range handles {
				acquired.cleanup.Stop()
				c.releaseLocked(acquired.ref)
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	c.logger.Debug("loaded all modules", "count", len(handles))
	return handles, nil
}

// Loaded returns the cached modules in insertion order.
func (c *Context) Loaded() []LoadedModule {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LoadedModule, 0, len(c.order))
	for _, e := range c.order {
		out = append(out, LoadedModule{Module: e.module, Format: e.image.Format(), Origin: e.origin})
	}
	return out
}

// FindExport returns every loaded module exporting symbol, in load order.
func (c *Context) FindExport(symbol string) []ExportMatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.State().AcceptsLoads() {
		return nil
	}
	var out []ExportMatch
	for _, e := range c.order {
		if slices.Contains(e.image.Exports(), symbol) {
			out = append(out, ExportMatch{Module: e.module, Symbol: symbol})
		}
	}
	return out
}

// RequestUnload starts unloading a collectible context. Loads fail from now
// on and existing handles stop yielding images. The context becomes
// StateUnloaded once every outstanding handle is released, which may be
// immediately. Calling it again is a no-op.
func (c *Context) RequestUnload() error {
	if !c.collectible {
		return &StateError{Context: c.name, Op: "request unload", State: c.State(), Err: ErrUnsupportedOperation}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.State().AcceptsLoads() {
		return nil
	}
	c.life.state.Store(int32(StateUnloading))
	if c.owned {
		c.owned = false
		c.refs--
	}
	c.logger.Info("unload requested", "outstanding", c.refs, "modules", len(c.order))
	c.maybeFinalizeLocked()
	return nil
}

func (c *Context) beginLoadLocked(op string) error {
	st := c.State()
	if !st.AcceptsLoads() {
		return &StateError{Context: c.name, Op: op, State: st, Err: ErrContextUnloading}
	}
	c.life.state.CompareAndSwap(int32(StateCreated), int32(StateActive))
	return nil
}

func keyOf(m assets.Module, origin Origin) moduleKey {
	k := moduleKey{name: strings.ToLower(m.Name)}
	if origin == OriginResolved {
		k.version = m.Version.String()
	}
	return k
}

func (c *Context) loadLocked(ctx context.Context, m assets.Module, origin Origin) (*Handle, error) {
	key := keyOf(m, origin)
	if e, ok := c.entries[key]; ok {
		return c.newHandleLocked(e), nil
	}

	img, err := c.loader.Load(ctx, m.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrModuleNotFound, err)
		}
		c.logger.Warn("module load failed", "module", m.String(), "path", m.Path, "err", err)
		return nil, &LoadError{Module: m, Err: err}
	}

	e := &entry{module: m, origin: origin, image: img}
	c.entries[key] = e
	c.order = append(c.order, e)
	c.logger.Debug("module loaded", "module", m.String(), "format", img.Format(), "origin", origin)
	return c.newHandleLocked(e), nil
}

// newHandleLocked takes a reference for a new Handle. A Handle dropped
// without Release gives its reference back when it is garbage collected.
func (c *Context) newHandleLocked(e *entry) *Handle {
	c.refs++
	ref := &handleRef{}
	h := &Handle{owner: c, entry: e, ref: ref}
	h.cleanup = runtime.AddCleanup(h, c.release, ref)
	return h
}

func (c *Context) release(ref *handleRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(ref)
}

func (c *Context) releaseLocked(ref *handleRef) {
	if !ref.released.CompareAndSwap(false, true) {
		return
	}
	c.refs--
	c.maybeFinalizeLocked()
}

// maybeFinalizeLocked completes the unload once no references remain.
func (c *Context) maybeFinalizeLocked() {
	if c.refs > 0 || c.State() != StateUnloading {
		return
	}

	ctx := context.Background()
	for _, e := range c.order {
		if err := e.image.Close(ctx); err != nil {
			c.logger.Warn("close module image", "module", e.module.String(), "err", err)
		}
	}
	if lc, ok := c.loader.(loaderCloser); ok {
		if err := lc.Close(ctx); err != nil {
			c.logger.Warn("close module loader", "err", err)
		}
	}

	c.entries = make(map[moduleKey]*entry)
	c.order = nil
	c.life.state.Store(int32(StateUnloaded))
	close(c.life.done)
	c.logger.Info("context unloaded")
}
