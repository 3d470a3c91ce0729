// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		if err := FormatError(nil, "pullfile.cue"); err != nil {
			t.Errorf("FormatError(nil) = %v, want nil", err)
		}
	})

	t.Run("plain_error", func(t *testing.T) {
		t.Parallel()
		orig := errors.New("some error")
		err := FormatError(orig, "pullfile.cue")
		if !errors.Is(err, orig) {
			t.Errorf("plain errors should stay wrapped, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "pullfile.cue: ") {
			t.Errorf("error should name the file, got %q", err)
		}
	})
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	one := &ValidationError{File: "a.cue", Issues: []FieldIssue{{Path: "packages[0].id", Message: "incomplete value"}}}
	if got, want := one.Error(), "a.cue: packages[0].id: incomplete value"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	two := &ValidationError{File: "a.cue", Issues: []FieldIssue{{Message: "first"}, {Path: "x", Message: "second"}}}
	if got, want := two.Error(), "a.cue: validation failed:\n  first\n  x: second"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(one, ErrValidation) {
		t.Error("ValidationError should wrap ErrValidation")
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"framework"}, "framework"},
		{[]string{"packages", "0", "id"}, "packages[0].id"},
		{[]string{"sources", "1", "mappings", "2"}, "sources[1].mappings[2]"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
