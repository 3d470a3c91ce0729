// SPDX-License-Identifier: MPL-2.0

package puller

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
)

// DefaultEngineCommand restores the generated project with the dotnet CLI.
const DefaultEngineCommand = `dotnet restore "$PULLPKG_PROJECT" --configfile "$PULLPKG_CONFIG" --packages "$PULLPKG_PACKAGES" --disable-parallel`

// Variables expanded in an ExecEngine command.
const (
	EnvProject  = "PULLPKG_PROJECT"
	EnvConfig   = "PULLPKG_CONFIG"
	EnvPackages = "PULLPKG_PACKAGES"
	EnvDir      = "PULLPKG_DIR"
)

// maxDiagnostics caps the diagnostic lines kept from engine output.
const maxDiagnostics = 50

type (
	// RestoreRequest is everything an engine needs to restore one pull.
	RestoreRequest struct {
		Dir         string
		ProjectPath string
		ConfigPath  string
		PackagesDir string
		AssetsPath  string
		Framework   Framework
		Packages    []PackageRequest
		Sources     []Source
	}

	// RestoreSummary describes the outcome of a restore. InstallCount is
	// filled in from the lock document after the engine returns.
	RestoreSummary struct {
		InstallCount int
		Success      bool
		Diagnostics  []string
		Duration     time.Duration
	}

	// Engine resolves the dependency graph of a RestoreRequest, installs
	// packages under PackagesDir and writes the lock document to AssetsPath.
	Engine interface {
		Restore(ctx context.Context, req RestoreRequest) (RestoreSummary, error)
	}

	// EngineFunc adapts a function to Engine.
	EngineFunc func(ctx context.Context, req RestoreRequest) (RestoreSummary, error)

	// ExecEngine runs an external restore tool. Command is split into
	// arguments with POSIX shell rules after expanding the PULLPKG_*
	// variables and the process environment.
	ExecEngine struct {
		Command string
		// Env adds KEY=VALUE pairs to the tool's environment.
		Env []string
		// Output, when set, receives the tool's combined output as it runs.
		Output io.Writer
		Logger *log.Logger
	}
)

// Restore implements Engine.
func (f EngineFunc) Restore(ctx context.Context, req RestoreRequest) (RestoreSummary, error) {
	return f(ctx, req)
}

// NewExecEngine returns an ExecEngine running command, or
// DefaultEngineCommand when command is empty.
func NewExecEngine(command string) *ExecEngine {
	if strings.TrimSpace(command) == "" {
		command = DefaultEngineCommand
	}
	return &ExecEngine{Command: command}
}

func (e *ExecEngine) vars(req RestoreRequest) map[string]string {
	return map[string]string{
		EnvProject:  req.ProjectPath,
		EnvConfig:   req.ConfigPath,
		EnvPackages: req.PackagesDir,
		EnvDir:      req.Dir,
	}
}

// Args expands the command for req without running it.
func (e *ExecEngine) Args(req RestoreRequest) ([]string, error) {
	vars := e.vars(req)
	args, err := shell.Fields(e.Command, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return args, nil
}

// Restore implements Engine.
func (e *ExecEngine) Restore(ctx context.Context, req RestoreRequest) (RestoreSummary, error) {
	logger := e.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	args, err := e.Args(req)
	if err != nil {
		return RestoreSummary{}, &RestoreError{Err: err}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = os.Environ()
	for k, v := range e.vars(req) {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, e.Env...)

	var out bytes.Buffer
	var w io.Writer = &out
	if e.Output != nil {
		w = io.MultiWriter(&out, e.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	logger.Debug("running restore engine", "command", args[0], "args", args[1:])
	runErr := cmd.Run()
	summary := RestoreSummary{Success: runErr == nil, Diagnostics: diagnostics(out.Bytes())}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			runErr = fmt.Errorf("%s exited with code %d", args[0], exitErr.ExitCode())
		}
		return summary, &RestoreError{Diagnostics: summary.Diagnostics, Err: runErr}
	}
	return summary, nil
}

// diagnostics keeps the error and warning lines of engine output, or the
// last lines when none are tagged.
func diagnostics(output []byte) []string {
	var all, tagged []string
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		all = append(all, line)
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "warn") {
			tagged = append(tagged, line)
		}
	}
	if len(tagged) > 0 {
		all = tagged
	}
	if len(all) > maxDiagnostics {
		all = all[len(all)-maxDiagnostics:]
	}
	return all
}
