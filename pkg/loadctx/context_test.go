// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/modimage"
	"github.com/pullpkg/pullpkg/pkg/resolver"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

type (
	fakeImage struct {
		path    string
		exports []string
		closed  *int
	}

	// fakeLoader serves images from memory. Paths not in images are
	// missing; paths in invalid are present but unloadable.
	fakeLoader struct {
		mu      sync.Mutex
		images  map[string][]string
		invalid map[string]bool
		loads   map[string]int
		closes  int
		closed  bool
	}
)

func (i *fakeImage) Path() string            { return i.path }
func (i *fakeImage) Format() modimage.Format { return modimage.FormatWasm }
func (i *fakeImage) Arch() string            { return "wasm" }
func (i *fakeImage) Exports() []string       { return i.exports }

func (i *fakeImage) Close(context.Context) error {
	*i.closed++
	return nil
}

func newFakeLoader(images map[string][]string) *fakeLoader {
	return &fakeLoader{images: images, invalid: map[string]bool{}, loads: map[string]int{}}
}

func (l *fakeLoader) Load(_ context.Context, path string) (modimage.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[path]++
	if l.invalid[path] {
		return nil, &modimage.FormatError{Path: path, Err: errors.New("bad magic")}
	}
	exports, ok := l.images[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return &fakeImage{path: path, exports: exports, closed: &l.closes}, nil
}

func (l *fakeLoader) Close(context.Context) error {
	l.closed = true
	return nil
}

func mod(name, version string) assets.Module {
	return assets.Module{Name: name, Version: versioning.MustParseVersion(version), Path: "/pkgs/" + name + "/" + version}
}

func testResolver() *resolver.Resolver {
	return resolver.New([]assets.Package{
		{Name: "A", Version: versioning.MustParseVersion("1.0.0"), Modules: []assets.Module{mod("A", "1.0.0")}},
		{Name: "A", Version: versioning.MustParseVersion("2.0.0"), Modules: []assets.Module{mod("A", "2.0.0")}},
		{Name: "B", Version: versioning.MustParseVersion("1.5.0"), Modules: []assets.Module{mod("B", "1.5.0")}},
	})
}

func testLoader() *fakeLoader {
	return newFakeLoader(map[string][]string{
		"/pkgs/A/1.0.0": {"a_init"},
		"/pkgs/A/2.0.0": {"a_init", "a_v2"},
		"/pkgs/B/1.5.0": {"b_init", "shared"},
		"/host/C.dll":   {"shared"},
	})
}

func TestLoadModule_MemoizesPerNameAndVersion(t *testing.T) {
	t.Parallel()

	l := testLoader()
	c := New("test", testResolver(), WithLoader(l))
	if c.State() != StateCreated {
		t.Fatalf("State() = %s, want created", c.State())
	}

	h1, err := c.LoadModule(t.Context(), "a", nil)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	h2, err := c.LoadModule(t.Context(), "A", nil)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}

	if got := h1.Module().Version.String(); got != "2.0.0" {
		t.Errorf("resolved version = %s, want 2.0.0", got)
	}
	img1, _ := h1.Image()
	img2, _ := h2.Image()
	if img1 != img2 {
		t.Error("repeated loads should return the same image")
	}
	if n := l.loads["/pkgs/A/2.0.0"]; n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if c.State() != StateActive {
		t.Errorf("State() = %s, want active", c.State())
	}

	v1 := versioning.MustParseVersion("1.0.0")
	if _, err := c.LoadModuleInRange(t.Context(), "A", versioning.Exact(v1)); err != nil {
		t.Fatalf("LoadModuleInRange() error = %v", err)
	}
	if got := len(c.Loaded()); got != 2 {
		t.Errorf("Loaded() has %d entries, want 2 distinct versions", got)
	}
}

func TestLoadModule_Fallback(t *testing.T) {
	t.Parallel()

	l := testLoader()
	c := New("test", testResolver(), WithLoader(l), WithFallback(MapLookup{"C": "/host/C.dll"}))

	h, err := c.LoadModule(t.Context(), "c", nil)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	if h.Origin() != OriginFallback {
		t.Errorf("Origin() = %s, want fallback", h.Origin())
	}

	// The fallback knows no B, so an unsatisfiable minimum is a miss.
	floor := versioning.MustParseVersion("9.0.0")
	if _, err := c.LoadModule(t.Context(), "B", &floor); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("LoadModule(B >= 9) error = %v, want ErrModuleNotFound", err)
	}

	// Range requests never consult the fallback.
	if _, err := c.LoadModuleInRange(t.Context(), "C", versioning.All()); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("LoadModuleInRange(C) error = %v, want ErrModuleNotFound", err)
	}
}

func TestLoadModule_NotFound(t *testing.T) {
	t.Parallel()

	c := New("test", testResolver(), WithLoader(testLoader()))
	_, err := c.LoadModule(t.Context(), "Missing", nil)
	var nf *ModuleNotFoundError
	if !errors.As(err, &nf) || nf.Name != "Missing" {
		t.Fatalf("LoadModule() error = %v, want *ModuleNotFoundError", err)
	}
	if !errors.Is(err, ErrModuleNotFound) {
		t.Error("error should wrap ErrModuleNotFound")
	}
}

func TestLoadModule_MissingFile(t *testing.T) {
	t.Parallel()

	c := New("test", testResolver(), WithLoader(newFakeLoader(nil)))
	_, err := c.LoadModule(t.Context(), "B", nil)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("LoadModule() error = %v, want *LoadError", err)
	}
	if !errors.Is(err, ErrModuleNotFound) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v should wrap ErrModuleNotFound and fs.ErrNotExist", err)
	}
}

func TestLoadModule_InvalidFormatNotMemoized(t *testing.T) {
	t.Parallel()

	l := testLoader()
	l.invalid["/pkgs/B/1.5.0"] = true
	c := New("test", testResolver(), WithLoader(l))

	for range 2 {
		_, err := c.LoadModule(t.Context(), "B", nil)
		if !errors.Is(err, ErrInvalidModuleFormat) {
			t.Fatalf("LoadModule() error = %v, want ErrInvalidModuleFormat", err)
		}
	}
	if n := l.loads["/pkgs/B/1.5.0"]; n != 2 {
		t.Errorf("failed load retried %d times, want 2", n)
	}
	if len(c.Loaded()) != 0 {
		t.Error("failed loads must not be cached")
	}
}

func TestLoadAll_FailFast(t *testing.T) {
	t.Parallel()

	l := testLoader()
	l.invalid["/pkgs/A/2.0.0"] = true
	c := New("test", testResolver(), WithLoader(l), WithCollectible())

	_, err := c.LoadAll(t.Context())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("LoadAll() error = %v, want *LoadError", err)
	}
	if le.Module.Path != "/pkgs/A/2.0.0" {
		t.Errorf("failing module = %s, want A@2.0.0", le.Module.Path)
	}
	if l.loads["/pkgs/B/1.5.0"] != 0 {
		t.Error("LoadAll should stop at the first failure")
	}

	// Handles taken by the failed call were released, so unload completes now.
	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateUnloaded {
		t.Errorf("State() = %s, want unloaded", c.State())
	}
}

func TestLoadAll_Order(t *testing.T) {
	t.Parallel()

	c := New("test", testResolver(), WithLoader(testLoader()))
	handles, err := c.LoadAll(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, h := range handles {
		got = append(got, h.Module().String())
	}
	want := []string{"A@1.0.0", "A@2.0.0", "B@1.5.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadAll() order mismatch (-want +got):\n%s", diff)
	}

	var loaded []string
	for _, m := range c.Loaded() {
		loaded = append(loaded, m.Module.String())
	}
	if diff := cmp.Diff(want, loaded); diff != "" {
		t.Errorf("Loaded() mismatch (-want +got):\n%s", diff)
	}
}

func TestFindExport(t *testing.T) {
	t.Parallel()

	c := New("test", testResolver(), WithLoader(testLoader()), WithFallback(MapLookup{"C": "/host/C.dll"}))
	if _, err := c.LoadModule(t.Context(), "B", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LoadModule(t.Context(), "C", nil); err != nil {
		t.Fatal(err)
	}

	matches := c.FindExport("shared")
	if len(matches) != 2 || matches[0].Module.Name != "B" || matches[1].Module.Name != "C" {
		t.Errorf("FindExport(shared) = %+v", matches)
	}
	if got := c.FindExport("nope"); len(got) != 0 {
		t.Errorf("FindExport(nope) = %+v, want none", got)
	}
}

func TestRequestUnload_NonCollectible(t *testing.T) {
	t.Parallel()

	c := New("default", testResolver(), WithLoader(testLoader()))
	err := c.RequestUnload()
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("RequestUnload() error = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := c.LoadModule(t.Context(), "A", nil); err != nil {
		t.Errorf("context should keep serving loads, got %v", err)
	}
}

func TestRequestUnload_WaitsForHandles(t *testing.T) {
	t.Parallel()

	l := testLoader()
	c := New("plugin", testResolver(), WithLoader(l), WithCollectible())
	obs := c.Observe()

	h1, err := c.LoadModule(t.Context(), "A", nil)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c.LoadModule(t.Context(), "B", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}
	if err := c.RequestUnload(); err != nil {
		t.Errorf("second RequestUnload() error = %v", err)
	}
	if obs.State() != StateUnloading {
		t.Fatalf("State() = %s, want unloading", obs.State())
	}
	if _, err := c.LoadModule(t.Context(), "A", nil); !errors.Is(err, ErrContextUnloading) {
		t.Errorf("load after unload request error = %v, want ErrContextUnloading", err)
	}
	if _, err := h1.Image(); !errors.Is(err, ErrContextUnloading) {
		t.Errorf("Image() after unload request error = %v, want ErrContextUnloading", err)
	}

	h1.Release()
	h1.Release()
	if obs.Unloaded() {
		t.Fatal("context unloaded while a handle is outstanding")
	}

	h2.Release()
	if !obs.Unloaded() {
		t.Fatalf("State() = %s, want unloaded", obs.State())
	}
	if l.closes != 2 || !l.closed {
		t.Errorf("closes = %d, loader closed = %v; want 2 and true", l.closes, l.closed)
	}
	if _, err := h2.Image(); !errors.Is(err, ErrHandleReleased) {
		t.Errorf("Image() after release error = %v, want ErrHandleReleased", err)
	}
	if err := obs.Wait(t.Context()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if len(c.Loaded()) != 0 {
		t.Error("cache should be empty after unload")
	}
}

func TestObserver_WaitTimeout(t *testing.T) {
	t.Parallel()

	c := New("plugin", testResolver(), WithLoader(testLoader()), WithCollectible())
	h, err := c.LoadModule(t.Context(), "A", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}

	obs := c.Observe()
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := obs.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want DeadlineExceeded", err)
	}
	if obs.Context() != c {
		t.Error("Context() should return the live context")
	}

	go h.Release()
	ctx2, cancel2 := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel2()
	if err := obs.Wait(ctx2); err != nil {
		t.Errorf("Wait() after release error = %v", err)
	}
}

func TestRequestUnload_DroppedHandleIsCollected(t *testing.T) {
	t.Parallel()

	l := testLoader()
	c := New("plugin", testResolver(), WithLoader(l), WithCollectible())
	obs := c.Observe()

	// The handle is never released, only dropped.
	if _, err := c.LoadModule(t.Context(), "A", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100 && !obs.Unloaded(); i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if !obs.Unloaded() {
		t.Fatalf("State() = %s, want unloaded once the dropped handle is collected", obs.State())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closes != 1 || !l.closed {
		t.Errorf("closes = %d, loader closed = %v; want 1 and true", l.closes, l.closed)
	}
}

func TestHandleRelease_StopsCollection(t *testing.T) {
	t.Parallel()

	c := New("plugin", testResolver(), WithLoader(testLoader()), WithCollectible())
	obs := c.Observe()
	keep, err := c.LoadModule(t.Context(), "A", nil)
	if err != nil {
		t.Fatal(err)
	}
	released, err := c.LoadModule(t.Context(), "B", nil)
	if err != nil {
		t.Fatal(err)
	}
	released.Release()
	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}

	runtime.GC()
	time.Sleep(10 * time.Millisecond)
	if obs.Unloaded() {
		t.Fatal("context unloaded while a reachable handle is outstanding")
	}
	keep.Release()
	if !obs.Unloaded() {
		t.Errorf("State() = %s, want unloaded", obs.State())
	}
}

func TestConcurrentLoads(t *testing.T) {
	t.Parallel()

	l := testLoader()
	c := New("plugin", testResolver(), WithLoader(l), WithCollectible())

	var wg sync.WaitGroup
	handles := make([]*Handle, 16)
	for i := range handles {
		wg.Go(func() {
			h, err := c.LoadModule(t.Context(), "B", nil)
			if err != nil {
				t.Error(err)
				return
			}
			handles[i] = h
		})
	}
	wg.Wait()
	if n := l.loads["/pkgs/B/1.5.0"]; n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}

	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}
	for _, h := range handles {
		if h != nil {
			h.Release()
		}
	}
	if c.State() != StateUnloaded {
		t.Errorf("State() = %s, want unloaded", c.State())
	}
}

func TestContext_RealWasmModule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Plugin.wasm")
	if err := os.WriteFile(path, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	c := New("plugin", nil, WithCollectible(), WithFallback(DirLookup{Dirs: []string{dir}}))
	h, err := c.LoadModule(t.Context(), "Plugin", nil)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	img, err := h.Image()
	if err != nil {
		t.Fatal(err)
	}
	if img.Format() != modimage.FormatWasm {
		t.Errorf("Format() = %s, want wasm", img.Format())
	}
	if err := c.RequestUnload(); err != nil {
		t.Fatal(err)
	}
	h.Release()
	if c.State() != StateUnloaded {
		t.Errorf("State() = %s, want unloaded", c.State())
	}
}

func TestDirLookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"Native.so", "Plain"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "Folder.dll"), 0o755); err != nil {
		t.Fatal(err)
	}

	lookup := DirLookup{Dirs: []string{filepath.Join(dir, "absent"), dir}}
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"Native", filepath.Join(dir, "Native.so"), true},
		{"Plain", filepath.Join(dir, "Plain"), true},
		{"Folder", "", false},
		{"../Native", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.name), func(t *testing.T) {
			t.Parallel()
			got, ok := lookup.Find(tt.name)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Find(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}
