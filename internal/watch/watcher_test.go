// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

// recorder collects callback invocations.
type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// start runs w until the test ends and reports Run's error.
func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
}

func TestWatcher_Debounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{BaseDir: dir, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		mustWrite(t, filepath.Join(dir, name), "data")
		time.Sleep(10 * time.Millisecond)
	}
	rec.wait(t)
	time.Sleep(200 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 debounced callback, got %d: %v", len(calls), calls)
	}
	for _, want := range []string{"a.txt", "b.txt", "c.txt"} {
		if !slices.Contains(calls[0], want) {
			t.Errorf("expected %q in changed files, got %v", want, calls[0])
		}
	}
	if !slices.IsSorted(calls[0]) {
		t.Errorf("changed paths should be sorted, got %v", calls[0])
	}
}

func TestWatcher_FilesOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pullfile := filepath.Join(dir, "pullfile.cue")
	mustWrite(t, pullfile, `packages: []`)

	rec := newRecorder()
	w, err := New(Config{
		BaseDir:  dir,
		Files:    []string{pullfile},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatal(err)
	}
	start(t, w)

	mustWrite(t, filepath.Join(dir, "notes.txt"), "unrelated")
	mustWrite(t, pullfile, `packages: [{id: "A", version: "1.0"}]`)
	rec.wait(t)

	calls := rec.snapshot()
	if len(calls) == 0 || !slices.Equal(calls[0], []string{"pullfile.cue"}) {
		t.Errorf("changed = %v, want only pullfile.cue", calls)
	}
}

func TestWatcher_IgnoresPullDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(filepath.Join(out, "packages"), 0o755); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w, err := New(Config{BaseDir: dir, PullDir: out, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatal(err)
	}
	start(t, w)

	mustWrite(t, filepath.Join(out, "nuget.config"), "<configuration/>")
	mustWrite(t, filepath.Join(out, "packages", "a.dll"), "MZ")
	mustWrite(t, filepath.Join(dir, "pullfile.toml"), "")
	rec.wait(t)

	calls := rec.snapshot()
	if !slices.Equal(calls[0], []string{"pullfile.toml"}) {
		t.Errorf("changed = %v, want only pullfile.toml", calls[0])
	}
}

func TestWatcher_PatternFiltering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	feed := filepath.Join(dir, "feed")
	if err := os.Mkdir(feed, 0o755); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w, err := New(Config{
		BaseDir:  dir,
		Patterns: []string{"**/*.nupkg"},
		Debounce: 100 * time.Millisecond,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatal(err)
	}
	start(t, w)

	mustWrite(t, filepath.Join(dir, "readme.md"), "#")
	mustWrite(t, filepath.Join(feed, "contoso.1.0.0.nupkg"), "PK")
	rec.wait(t)

	calls := rec.snapshot()
	if want := []string{filepath.Join("feed", "contoso.1.0.0.nupkg")}; !slices.Equal(calls[0], want) {
		t.Errorf("changed = %v, want %v", calls[0], want)
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() = %v, want nil on cancellation", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantCount int
	}{
		{"zero", Config{}, 0},
		{"valid", Config{Files: []string{"pullfile.cue"}, Patterns: []string{"**/*.nupkg"}, Ignore: []string{"tmp/**"}}, 0},
		{"empty_pattern", Config{Patterns: []string{" "}}, 1},
		{"malformed_pattern", Config{Ignore: []string{"[unclosed"}}, 1},
		{"several", Config{Files: []string{""}, Patterns: []string{"{a,b"}, Debounce: -time.Second}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantCount == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidWatchConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidWatchConfig", err)
			}
			var ice *InvalidWatchConfigError
			if !errors.As(err, &ice) || len(ice.FieldErrors) != tt.wantCount {
				t.Errorf("want %d field errors, got %v", tt.wantCount, err)
			}
		})
	}

	if _, err := New(Config{Patterns: []string{"[bad"}}); !errors.Is(err, ErrInvalidWatchConfig) {
		t.Errorf("New() should validate, got %v", err)
	}
}

func TestPullDirPattern(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	tests := []struct {
		name   string
		dir    string
		want   string
		wantOK bool
	}{
		{"inside", filepath.Join(base, ".cache", "pull"), ".cache/pull/**", true},
		{"base_itself", base, "", false},
		{"outside", filepath.Dir(base), "", false},
		{"sibling", filepath.Join(filepath.Dir(base), "other"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := pullDirPattern(base, tt.dir)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("pullDirPattern(%q) = %q, %v; want %q, %v", tt.dir, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	ignores := DefaultIgnores()
	for _, path := range []string{".pullpkg/packages/a.dll", "obj/project.assets.json", "sub/bin/x", ".git/HEAD", "pullfile.cue.swp"} {
		if !matchAny(ignores, path) {
			t.Errorf("%q should be ignored by default", path)
		}
	}
	for _, path := range []string{"pullfile.cue", "config.cue", "feed/a.nupkg"} {
		if matchAny(ignores, path) {
			t.Errorf("%q should not be ignored by default", path)
		}
	}

	ignores[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() should return a copy")
	}
}
