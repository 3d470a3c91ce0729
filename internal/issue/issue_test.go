// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestValues_CoversEveryId(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(PermissionDeniedId) {
		t.Fatalf("Values() has %d issues, want %d", len(values), PermissionDeniedId)
	}
	for i, is := range values {
		if want := Id(i + 1); is.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, is.Id(), want)
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", is.Id())
		}
		if !strings.Contains(string(is.MarkdownMsg()), "# ") {
			t.Errorf("issue %d should start with a heading", is.Id())
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	if is := Get(RestoreFailedId); is == nil || !strings.Contains(string(is.MarkdownMsg()), "Package restore failed") {
		t.Errorf("Get(RestoreFailedId) = %v", is)
	}
	if Get(0) != nil || Get(Id(999)) != nil {
		t.Error("unknown ids should return nil")
	}
}

func TestIssue_LinksAreCopies(t *testing.T) {
	t.Parallel()

	is := Get(EngineNotFoundId)
	links := is.ExtLinks()
	if len(links) == 0 {
		t.Fatal("EngineNotFound should link the SDK download")
	}
	links[0] = "mutated"
	if is.ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() should return a copy")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	for _, is := range Values() {
		out, err := is.Render("notty")
		if err != nil {
			t.Errorf("Render(%d) error = %v", is.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Render(%d) produced no output", is.Id())
		}
	}

	out, err := Get(ConfigurationInvalidId).Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "See also") || !strings.Contains(out, "package-versioning") {
		t.Errorf("Render() should list doc links, got:\n%s", out)
	}
}

func TestIssue_RenderError(t *testing.T) {
	// Replaces the package-level renderer, so not parallel.
	orig := render
	t.Cleanup(func() { render = orig })

	var gotIn string
	render = func(in, _ string) (string, error) {
		gotIn = in
		return "", errors.New("no style")
	}
	if _, err := Get(NotPulledId).Render("dark"); err == nil {
		t.Error("Render() should surface renderer errors")
	}
	if strings.Contains(gotIn, "See also") {
		t.Error("issues without links should not get a See also section")
	}
}
