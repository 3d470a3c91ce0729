// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a pull when its inputs change.
//
// A Watcher monitors a pull file, the configuration file and any extra glob
// patterns under a base directory, and invokes a callback after a debounce
// period. Events within the window are coalesced so the callback fires once
// with the full set of changed paths. The pull directory itself is always
// ignored, since every pull rewrites it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay before firing the callback after the
// last filesystem event. Editors that write a temp file and rename it
// produce several events for one save.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores lists restore outputs and editor noise that never trigger
// a pull.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.pullpkg/**",
	"**/obj/**",
	"**/bin/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

var (
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Files are individual files whose changes trigger the callback,
		// typically the pull file and the configuration file. They may live
		// outside BaseDir.
		Files []string

		// Patterns are doublestar glob patterns relative to BaseDir
		// ("feeds/**/*.nupkg") that also trigger the callback. With no Files
		// and no Patterns every non-ignored file triggers.
		Patterns []string

		// Ignore are glob patterns merged with the built-in ignores.
		Ignore []string

		// PullDir is excluded from watching when it lies under BaseDir.
		PullDir string

		// Debounce is the quiet period after the last event. Zero falls back
		// to defaultDebounce.
		Debounce time.Duration

		// BaseDir is the root directory to watch. Empty means the working
		// directory.
		BaseDir string

		// OnChange receives the deduplicated changed paths, relative to
		// BaseDir. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives skipped paths, callback errors and non-fatal
		// fsnotify errors. nil discards them.
		Logger *log.Logger
	}

	// InvalidWatchConfigError lists every problem found in a Config.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors filesystem paths and fires a debounced callback when
	// matching files change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		files    map[string]struct{}
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

// Validate checks patterns compile and the debounce is not negative.
func (c Config) Validate() error {
	var errs []error
	for _, group := range []struct {
		label    string
		patterns []string
	}{{"watch", c.Patterns}, {"ignore", c.Ignore}} {
		for _, pat := range group.patterns {
			if strings.TrimSpace(pat) == "" {
				errs = append(errs, fmt.Errorf("empty %s pattern", group.label))
				continue
			}
			if !doublestar.ValidatePattern(pat) {
				errs = append(errs, fmt.Errorf("invalid %s pattern %q", group.label, pat))
			}
		}
	}
	for _, f := range c.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, errors.New("empty watched file path"))
		}
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("negative debounce %s", c.Debounce))
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("watch: %d invalid field(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// New validates cfg, resolves BaseDir and registers every non-ignored
// directory under it plus the directories holding cfg.Files.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = defaultDebounce
	}

	ignores := slices.Concat(defaultIgnores, cfg.Ignore)
	if cfg.PullDir != "" {
		if pat, ok := pullDirPattern(absBase, cfg.PullDir); ok {
			ignores = append(ignores, pat, strings.TrimSuffix(pat, "/**"))
		}
	}

	files := make(map[string]struct{}, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", f, err)
		}
		files[abs] = struct{}{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  ignores,
		files:    files,
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// pullDirPattern returns the ignore pattern for dir when it is inside base.
func pullDirPattern(base, dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel) + "/**", true
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on cancellation and an
// error for fatal watcher failures.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may be scheduled by time.AfterFunc after ctx is done, hence the
	// ctx check. A run that outlasts the debounce reschedules rather than
	// overlapping.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous pull still running, rescheduling")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("pull after change failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "err", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			rel, ok := w.relevant(evt)
			if !ok {
				continue
			}
			w.logger.Debug("change detected", "path", rel, "op", evt.Op.String())

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			// isFatalFsnotifyError is platform-specific (see watcher_fatal_*.go).
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// relevant filters an event and returns its path relative to BaseDir.
func (w *Watcher) relevant(evt fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.baseDir, evt.Name)
	if err != nil {
		rel = evt.Name
	}
	if _, ok := w.files[evt.Name]; ok {
		return rel, true
	}
	if w.isIgnored(rel) {
		return "", false
	}
	// New directories extend the recursive watch.
	if evt.Has(fsnotify.Create) {
		w.maybeAddDir(evt.Name)
	}
	if !w.matchesPatterns(rel) {
		return "", false
	}
	return rel, true
}

// addDirectories registers BaseDir recursively when patterns (or nothing)
// select files, and the parent directory of each watched file.
func (w *Watcher) addDirectories() error {
	if len(w.cfg.Patterns) > 0 || len(w.files) == 0 {
		walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkDirErr error) error {
			if walkDirErr != nil {
				w.logger.Warn("skipping inaccessible path", "path", path, "err", walkDirErr)
				return nil //nolint:nilerr // intentional skip of inaccessible paths
			}
			if !d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(w.baseDir, path)
			if relErr != nil {
				return nil //nolint:nilerr // skip paths that cannot be made relative
			}
			if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
				return filepath.SkipDir
			}
			if addErr := w.fsw.Add(path); addErr != nil {
				return fmt.Errorf("watch: add directory %q: %w", path, addErr)
			}
			return nil
		})
		if walkErr != nil {
			return fmt.Errorf("watch: walk directory tree: %w", walkErr)
		}
	}

	for _, dir := range w.fileDirs() {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
	}
	return nil
}

// fileDirs returns the distinct parent directories of the watched files.
func (w *Watcher) fileDirs() []string {
	dirs := make(map[string]struct{}, len(w.files))
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(dirs))
}

// maybeAddDir adds path when it is a non-ignored directory created after
// the initial walk.
func (w *Watcher) maybeAddDir(path string) {
	if len(w.cfg.Patterns) == 0 && len(w.files) > 0 {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil || w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}
	if addErr := w.fsw.Add(path); addErr != nil {
		w.logger.Warn("add new directory", "path", path, "err", addErr)
	}
}

// isIgnored reports whether rel (relative to BaseDir) matches an ignore pattern.
func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, filepath.ToSlash(rel))
}

// matchesPatterns reports whether rel matches a watch pattern. With no
// patterns and no files everything matches; with only files nothing does.
func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return len(w.files) == 0
	}
	return matchAny(w.cfg.Patterns, filepath.ToSlash(rel))
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, path); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
