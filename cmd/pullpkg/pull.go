// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pullpkg/pullpkg/internal/pullfile"
	"github.com/pullpkg/pullpkg/internal/watch"
)

type pullFlagValues struct {
	watch     bool
	directory string
	detailed  bool
}

// newPullCommand creates the `pullpkg pull` command.
func newPullCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &pullFlagValues{}
	cmd := &cobra.Command{
		Use:   "pull [pullfile]",
		Short: "Restore the packages declared in a pull file",
		Long: `Restore the packages declared in a pull file.

Without an argument pullpkg reads pullfile.cue, then pullfile.toml, from the
current directory. The pull directory is cleared and regenerated on every run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			if flags.watch {
				return runPullWatch(cmd.Context(), app, rootFlags, flags, path)
			}
			return runPull(cmd.Context(), app, rootFlags, flags, path)
		},
	}

	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "pull again whenever the pull file or configuration changes")
	cmd.Flags().StringVarP(&flags.directory, "directory", "d", "", "pull directory (overrides the pull file)")
	cmd.Flags().BoolVar(&flags.detailed, "detailed", false, "list dependencies and modules of each package")
	return cmd
}

func runPull(ctx context.Context, app *App, rootFlags *rootFlagValues, flags *pullFlagValues, path string) error {
	s, err := app.newSession(ctx, rootFlags)
	if err != nil {
		return err
	}
	f, err := openPullfile(path)
	if err != nil {
		return err
	}
	p, err := app.newPuller(s, f, flags.directory)
	if err != nil {
		return err
	}
	summary, err := app.pull(ctx, s, p)
	if err != nil {
		return err
	}

	renderSummary(app.stdout, p, summary)
	renderPackages(app.stdout, p.Packages(), flags.detailed)
	renderSkipped(app.stdout, p.Skipped())
	if s.verbose {
		renderDiagnostics(app.stdout, summary.Diagnostics)
	}
	return nil
}

// runPullWatch pulls once, then again each time the pull file or the
// configuration file changes. It blocks until ctx is cancelled.
func runPullWatch(ctx context.Context, app *App, rootFlags *rootFlagValues, flags *pullFlagValues, path string) error {
	s, err := app.newSession(ctx, rootFlags)
	if err != nil {
		return err
	}
	f, err := openPullfile(path)
	if err != nil {
		return err
	}

	files := []string{f.Path}
	if cfgPath, pathErr := app.Config.Path(rootFlags.loadOptions()); pathErr == nil && cfgPath != "" {
		files = append(files, cfgPath)
	}

	repull := func(ctx context.Context) {
		if err := runPull(ctx, app, rootFlags, flags, f.Path); err != nil {
			issueID, styled := classifyError(err, s.verbose)
			renderServiceError(app.stderr, newServiceError(err, issueID, styled), app.issueStyle)
		}
	}

	fmt.Fprintf(app.stdout, "%s Watch mode: initial pull of %s\n", CmdStyle.Render("→"), f.Path)
	repull(ctx)
	fmt.Fprintf(app.stdout, "\n%s Watching for changes (Ctrl+C to stop)...\n\n", CmdStyle.Render("→"))

	w, err := watch.New(watch.Config{
		Files:   files,
		PullDir: f.PullDirectory(flags.directory),
		BaseDir: filepath.Dir(f.Path),
		Logger:  s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s). Pulling again...\n", CmdStyle.Render("→"), len(changed))
			repull(ctx)
			fmt.Fprintf(app.stdout, "\n%s Watching for changes...\n\n", CmdStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return w.Run(ctx)
}

// pullfileOrDiscover is used by commands that accept an optional pull file
// argument.
func pullfileOrDiscover(args []string) (*pullfile.File, error) {
	if len(args) == 0 {
		return openPullfile("")
	}
	return openPullfile(args[0])
}
