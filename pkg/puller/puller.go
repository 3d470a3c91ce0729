// SPDX-License-Identifier: MPL-2.0

package puller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
	"weak"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/loadctx"
	"github.com/pullpkg/pullpkg/pkg/modimage"
	"github.com/pullpkg/pullpkg/pkg/resolver"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

const tracerName = "github.com/pullpkg/pullpkg/pkg/puller"

type (
	// Option configures a Puller.
	Option func(*Puller)

	// LoaderFactory creates the module loader of each new loading context.
	LoaderFactory func() modimage.Loader

	// Puller materializes a pull Spec through an Engine and loads the
	// resulting modules into loading contexts it produces.
	Puller struct {
		spec      Spec
		engine    Engine
		fallback  loadctx.ModuleLookup
		newLoader LoaderFactory
		logger    *log.Logger
		tracer    trace.Tracer

		mu       sync.Mutex
		pulled   bool
		summary  RestoreSummary
		result   *assets.Result
		resolver *resolver.Resolver
		contexts map[weak.Pointer[loadctx.Context]]struct{}
		handles  []*loadctx.Handle
		seq      int
	}
)

// WithEngine replaces the default ExecEngine.
func WithEngine(e Engine) Option {
	return func(p *Puller) { p.engine = e }
}

// WithFallback sets the host module set given to every produced context.
func WithFallback(lookup loadctx.ModuleLookup) Option {
	return func(p *Puller) { p.fallback = lookup }
}

// WithLoaderFactory replaces the loader created for each produced context.
func WithLoaderFactory(f LoaderFactory) Option {
	return func(p *Puller) { p.newLoader = f }
}

// WithLogger sets the logger used by the puller, its builder and its contexts.
func WithLogger(l *log.Logger) Option {
	return func(p *Puller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracerProvider sets the provider of the spans recorded around pulls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Puller) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// Build applies configure to a fresh Config and returns a Puller for the
// resulting Spec. The first invalid declaration is returned as a
// *ConfigError.
func Build(configure func(*Config), opts ...Option) (*Puller, error) {
	p := &Puller{
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
		contexts: make(map[weak.Pointer[loadctx.Context]]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		e := NewExecEngine("")
		e.Logger = p.logger
		p.engine = e
	}

	cfg := newConfig(p.logger)
	if configure != nil {
		configure(cfg)
	}
	spec, err := cfg.spec()
	if err != nil {
		return nil, err
	}
	p.spec = spec
	return p, nil
}

// Spec returns the validated declaration.
func (p *Puller) Spec() Spec { return p.spec }

// ConfigPath is the generated engine configuration file.
func (p *Puller) ConfigPath() string { return filepath.Join(p.spec.Directory, ConfigFileName) }

// ProjectPath is the generated restore project.
func (p *Puller) ProjectPath() string { return filepath.Join(p.spec.Directory, ProjectFileName) }

// PackagesDir is where the engine installs packages.
func (p *Puller) PackagesDir() string { return filepath.Join(p.spec.Directory, PackagesDirName) }

// AssetsPath is the lock document read after a restore.
func (p *Puller) AssetsPath() string {
	return filepath.Join(p.spec.Directory, ObjDirName, AssetsFileName)
}

// Pulled reports whether the last Pull succeeded.
func (p *Puller) Pulled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pulled
}

// Summary returns the outcome of the last Pull.
func (p *Puller) Summary() RestoreSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Packages returns the packages of the last successful Pull, or nil.
func (p *Puller) Packages() []assets.Package {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolver == nil {
		return nil
	}
	return p.resolver.Packages()
}

// Skipped returns the lock document entries the last Pull ignored.
func (p *Puller) Skipped() []assets.Skipped {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return nil
	}
	return slices.Clone(p.result.Skipped)
}

// Resolver returns the resolver over the pulled packages, or nil before a
// successful Pull.
func (p *Puller) Resolver() *resolver.Resolver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolver
}

// Pull clears the pull directory, generates the engine inputs, runs the
// engine and parses its lock document. Any previous pull result is
// discarded first, so a failed or cancelled Pull leaves the puller
// needing another Pull before loading.
func (p *Puller) Pull(ctx context.Context) (summary RestoreSummary, err error) {
	ctx, span := p.tracer.Start(ctx, "puller.Pull", trace.WithAttributes(
		attribute.String("pullpkg.framework", p.spec.Framework.String()),
		attribute.String("pullpkg.directory", p.spec.Directory),
		attribute.Int("pullpkg.packages", len(p.spec.Packages)),
		attribute.Int("pullpkg.sources", len(p.spec.Sources)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("pullpkg.installed", summary.InstallCount))
		}
		span.End()
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pulled = false
	p.summary = RestoreSummary{}
	p.result = nil
	p.resolver = nil

	start := time.Now()
	if err := p.prepareDirectory(); err != nil {
		return RestoreSummary{}, err
	}
	if err := p.writeInputs(); err != nil {
		return RestoreSummary{}, err
	}

	req := RestoreRequest{
		Dir:         p.spec.Directory,
		ProjectPath: p.ProjectPath(),
		ConfigPath:  p.ConfigPath(),
		PackagesDir: p.PackagesDir(),
		AssetsPath:  p.AssetsPath(),
		Framework:   p.spec.Framework,
		Packages:    slices.Clone(p.spec.Packages),
		Sources:     slices.Clone(p.spec.Sources),
	}
	p.logger.Info("restoring packages", "directory", req.Dir, "framework", req.Framework, "packages", len(req.Packages))

	summary, err = p.restore(ctx, req)
	summary.Duration = time.Since(start)
	p.summary = summary
	if err != nil {
		return summary, err
	}

	res, err := assets.ParseFile(req.AssetsPath, p.spec.Framework.String(), req.PackagesDir)
	if err != nil {
		return summary, err
	}
	for _, s := range res.Skipped {
		p.logger.Warn("lock document entry skipped", "entry", s.Entry, "dependency", s.Dependency, "reason", s.Reason)
	}

	summary.InstallCount = res.Installed
	p.summary = summary
	p.result = res
	p.resolver = resolver.New(res.Packages)
	p.pulled = true
	p.logger.Info("packages restored", "installed", summary.InstallCount, "resolved", len(res.Packages), "duration", summary.Duration)
	return summary, nil
}

func (p *Puller) restore(ctx context.Context, req RestoreRequest) (RestoreSummary, error) {
	_, span := p.tracer.Start(ctx, "puller.Restore")
	defer span.End()

	summary, err := p.engine.Restore(ctx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		summary.Success = false
		p.logger.Warn("restore cancelled", "err", ctxErr)
		return summary, ctxErr
	}
	if err != nil {
		summary.Success = false
		var re *RestoreError
		if !errors.As(err, &re) {
			err = &RestoreError{Diagnostics: summary.Diagnostics, Err: err}
		}
		span.RecordError(err)
		return summary, err
	}
	if !summary.Success {
		return summary, &RestoreError{Diagnostics: summary.Diagnostics}
	}
	return summary, nil
}

// prepareDirectory empties the pull directory, creating it if needed, and
// creates the packages subdirectory.
func (p *Puller) prepareDirectory() error {
	dir := p.spec.Directory
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &DirectoryError{Op: "create", Path: dir, Err: err}
		}
	case err != nil:
		return &DirectoryError{Op: "stat", Path: dir, Err: err}
	case !info.IsDir():
		return &DirectoryError{Op: "prepare", Path: dir, Err: errors.New("not a directory")}
	default:
		entries, err := os.ReadDir(dir)
		if err != nil {
			return &DirectoryError{Op: "read", Path: dir, Err: err}
		}
		for _, e := range entries {
			target := filepath.Join(dir, e.Name())
			if err := os.RemoveAll(target); err != nil {
				return &DirectoryError{Op: "clear", Path: target, Err: err}
			}
		}
	}

	if err := os.Mkdir(p.PackagesDir(), 0o755); err != nil {
		return &DirectoryError{Op: "create", Path: p.PackagesDir(), Err: err}
	}
	return nil
}

func (p *Puller) writeInputs() error {
	cfg, err := renderNuGetConfig(p.spec)
	if err != nil {
		return &DirectoryError{Op: "render", Path: p.ConfigPath(), Err: err}
	}
	if err := writeGenerated(p.ConfigPath(), cfg); err != nil {
		return err
	}
	proj, err := renderProject(p.spec, p.PackagesDir())
	if err != nil {
		return &DirectoryError{Op: "render", Path: p.ProjectPath(), Err: err}
	}
	return writeGenerated(p.ProjectPath(), proj)
}

// newContextLocked creates and tracks a loading context over the pulled
// packages.
func (p *Puller) newContextLocked(collectible bool) *loadctx.Context {
	p.seq++
	opts := []loadctx.Option{loadctx.WithLogger(p.logger)}
	if collectible {
		opts = append(opts, loadctx.WithCollectible())
	}
	if p.fallback != nil {
		opts = append(opts, loadctx.WithFallback(p.fallback))
	}
	if p.newLoader != nil {
		opts = append(opts, loadctx.WithLoader(p.newLoader()))
	}
	name := fmt.Sprintf("%s#%d", filepath.Base(p.spec.Directory), p.seq)
	c := loadctx.New(name, p.resolver, opts...)

	for wp := range p.contexts {
		if wp.Value() == nil {
			delete(p.contexts, wp)
		}
	}
	p.contexts[weak.Make(c)] = struct{}{}
	return c
}

func (p *Puller) ownsLocked(c *loadctx.Context) bool {
	_, ok := p.contexts[weak.Make(c)]
	return ok
}

// LoadAll loads every pulled module into a new loading context. The
// puller holds the resulting handles until Dispose.
func (p *Puller) LoadAll(ctx context.Context, collectible bool) (*loadctx.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pulled {
		return nil, ErrNotPulled
	}

	c := p.newContextLocked(collectible)
	handles, err := c.LoadAll(ctx)
	if err != nil {
		discard(c)
		return nil, err
	}
	p.handles = append(p.handles, handles...)
	return c, nil
}

// LoadPackage loads the modules of every pulled package named name whose
// version satisfies rng. Dependencies are not loaded eagerly; the context
// resolves them on demand through LoadModule. When into is nil a new
// context is created; otherwise into must have been produced by this puller.
func (p *Puller) LoadPackage(ctx context.Context, name string, rng versioning.Range, into *loadctx.Context, collectible bool) (*loadctx.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pulled {
		return nil, ErrNotPulled
	}

	created := into == nil
	if created {
		into = p.newContextLocked(collectible)
	} else if !p.ownsLocked(into) {
		return nil, fmt.Errorf("%w: %q", ErrIncompatibleContext, into.Name())
	}

	var acquired []*loadctx.Handle
	for _, pkg := range p.resolver.PackagesMatching(name, rng) {
		for _, m := range pkg.Modules {
			h, err := into.LoadDescriptor(ctx, m)
			if err != nil {
				for _, h := range acquired {
					h.Release()
				}
				if created {
					discard(into)
				}
				return nil, err
			}
			acquired = append(acquired, h)
		}
	}
	p.handles = append(p.handles, acquired...)
	p.logger.Debug("package loaded", "package", name, "range", rng.String(), "modules", len(acquired), "context", into.Name())
	return into, nil
}

// Dispose releases every handle the puller holds so collectible contexts
// can finish unloading. The puller stays usable.
func (p *Puller) Dispose() error {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
	p.logger.Debug("puller disposed", "released", len(handles))
	return nil
}

// discard starts unloading a context that failed to populate.
func discard(c *loadctx.Context) {
	if c.Collectible() {
		_ = c.RequestUnload()
	}
}
