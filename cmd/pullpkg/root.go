// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand creates the pullpkg command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "pullpkg",
		Short: "Pull NuGet packages and load their modules",
		Long: TitleStyle.Render("pullpkg") + SubtitleStyle.Render(" - Pull NuGet packages and load their modules") + `

pullpkg restores the packages declared in a pull file through an external
restore engine, reads the resulting lock document and loads the restored
modules into isolated loading contexts.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Declare packages in pullfile.cue or pullfile.toml
  2. Restore them with: pullpkg pull
  3. Load them with: pullpkg load

` + SubtitleStyle.Render("Examples:") + `
  pullpkg pull                        Restore the packages of ./pullfile.cue
  pullpkg pull --watch                Restore again whenever the pull file changes
  pullpkg inspect obj/project.assets.json
  pullpkg resolve project.assets.json Humanizer --min 2.0
  pullpkg load --package Humanizer.Core --collectible`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/pullpkg/config.cue)")

	rootCmd.AddCommand(
		newPullCommand(app, flags),
		newInspectCommand(app, flags),
		newResolveCommand(app, flags),
		newLoadCommand(app, flags),
		newConfigCommand(app, flags),
	)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// errorHandler renders command failures through the issue catalog.
func (a *App) errorHandler(verbose func() bool) fang.ErrorHandler {
	return func(w io.Writer, _ fang.Styles, err error) {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err == nil {
			return
		}
		issueID, styled := classifyError(err, verbose())
		renderServiceError(w, newServiceError(err, issueID, styled), a.issueStyle)
	}
}

// Execute builds the command tree and runs it. It is called by main.main.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := NewRootCommand(app)
	verbose := func() bool {
		v, _ := rootCmd.PersistentFlags().GetBool("verbose")
		return v
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.errorHandler(verbose)),
	); err != nil {
		os.Exit(exitCode(err))
	}
}
