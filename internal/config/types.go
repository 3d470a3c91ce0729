// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pullpkg/pullpkg/pkg/puller"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidEngineConfig is the sentinel error wrapped by InvalidEngineConfigError.
	ErrInvalidEngineConfig = errors.New("invalid engine config")
	// ErrInvalidFallbackPath is returned for an empty or whitespace-only fallback path.
	ErrInvalidFallbackPath = errors.New("invalid fallback path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidEngineConfigError reports a malformed engine section.
	InvalidEngineConfigError struct {
		Reason string
	}

	// InvalidFallbackPathError is returned when a fallback path is blank.
	InvalidFallbackPathError struct {
		Index int
	}

	// InvalidConfigError collects every field error found in a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// DefaultFramework is the target framework for pull files that omit one.
		DefaultFramework puller.Framework `json:"default_framework" mapstructure:"default_framework"`
		// Engine configures the external restore tool.
		Engine EngineConfig `json:"engine" mapstructure:"engine"`
		// Fallback configures host module lookup.
		Fallback FallbackConfig `json:"fallback" mapstructure:"fallback"`
		// UI contains user interface settings.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// EngineConfig configures the restore engine.
	EngineConfig struct {
		// Command is the restore command template.
		Command string `json:"command" mapstructure:"command"`
		// Timeout bounds a single restore. Zero means no bound.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// FallbackConfig lists host directories searched for modules by file name.
	FallbackConfig struct {
		Paths []string `json:"paths" mapstructure:"paths"`
	}

	// UIConfig contains UI-related configuration.
	UIConfig struct {
		// Verbose enables debug logging and streams engine output.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme sets the color scheme for rendered issues.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultFramework: puller.DefaultFramework,
		Engine: EngineConfig{
			Command: puller.DefaultEngineCommand,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// Validate returns nil for auto, dark and light.
func (c ColorScheme) Validate() error {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: c}
	}
}

// GlamourStyle maps the scheme to a glamour style name.
func (c ColorScheme) GlamourStyle() string {
	switch c {
	case ColorSchemeDark, ColorSchemeLight:
		return string(c)
	default:
		return "auto"
	}
}

func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Validate checks the command is present and the timeout is not negative.
func (c EngineConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return &InvalidEngineConfigError{Reason: "command must not be empty"}
	}
	if c.Timeout < 0 {
		return &InvalidEngineConfigError{Reason: fmt.Sprintf("timeout %s must not be negative", c.Timeout)}
	}
	return nil
}

func (e *InvalidEngineConfigError) Error() string {
	return "invalid engine config: " + e.Reason
}

func (e *InvalidEngineConfigError) Unwrap() error { return ErrInvalidEngineConfig }

func (e *InvalidFallbackPathError) Error() string {
	return fmt.Sprintf("fallback.paths[%d] must not be empty", e.Index)
}

func (e *InvalidFallbackPathError) Unwrap() error { return ErrInvalidFallbackPath }

// Validate returns an *InvalidConfigError listing every invalid field, or nil.
func (c Config) Validate() error {
	var errs []error
	if err := c.DefaultFramework.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	for i, p := range c.Fallback.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, &InvalidFallbackPathError{Index: i})
		}
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
