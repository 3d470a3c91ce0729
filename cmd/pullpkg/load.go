// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pullpkg/pullpkg/pkg/loadctx"
	"github.com/pullpkg/pullpkg/pkg/puller"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

type loadFlagValues struct {
	directory     string
	packages      []string
	rangeText     string
	export        string
	collectible   bool
	unloadTimeout time.Duration
}

// newLoadCommand creates the `pullpkg load` command.
func newLoadCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &loadFlagValues{}
	cmd := &cobra.Command{
		Use:   "load [pullfile]",
		Short: "Pull packages and load their modules",
		Long: `Pull packages and load their modules into a loading context.

Without --package every pulled module is loaded. With --package only the
modules of the named packages are loaded, all into the same context. With --collectible the context is unloaded afterwards and
pullpkg waits until every module has been released.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), app, rootFlags, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.directory, "directory", "d", "", "pull directory (overrides the pull file)")
	cmd.Flags().StringSliceVarP(&flags.packages, "package", "p", nil, "load only the modules of this package (repeatable)")
	cmd.Flags().StringVar(&flags.rangeText, "range", "", "version range the --package versions must satisfy")
	cmd.Flags().StringVar(&flags.export, "export", "", "report the loaded modules exporting this symbol")
	cmd.Flags().BoolVar(&flags.collectible, "collectible", false, "load into a collectible context and unload it when done")
	cmd.Flags().DurationVar(&flags.unloadTimeout, "unload-timeout", 5*time.Second, "how long to wait for a collectible context to unload")
	return cmd
}

func runLoad(ctx context.Context, app *App, rootFlags *rootFlagValues, flags *loadFlagValues, args []string) error {
	var rng versioning.Range
	if flags.rangeText != "" {
		if len(flags.packages) == 0 {
			return fmt.Errorf("--range requires --package")
		}
		parsed, err := versioning.ParseRange(flags.rangeText)
		if err != nil {
			return err
		}
		rng = parsed
	}

	s, err := app.newSession(ctx, rootFlags)
	if err != nil {
		return err
	}
	f, err := pullfileOrDiscover(args)
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

	lc, err := loadInto(ctx, p, flags, rng)
	if err != nil {
		_ = p.Dispose()
		return err
	}
	renderLoaded(app.stdout, lc)
	if flags.export != "" {
		renderExports(app, lc, flags.export)
	}

	if err := p.Dispose(); err != nil {
		return err
	}
	if !flags.collectible {
		return nil
	}
	return unload(ctx, app, lc, flags.unloadTimeout)
}

// loadInto loads everything, or the requested packages into one context.
func loadInto(ctx context.Context, p *puller.Puller, flags *loadFlagValues, rng versioning.Range) (*loadctx.Context, error) {
	if len(flags.packages) == 0 {
		return p.LoadAll(ctx, flags.collectible)
	}

	var lc *loadctx.Context
	for _, name := range flags.packages {
		if len(p.Resolver().PackagesMatching(name, rng)) == 0 {
			return nil, &loadctx.ModuleNotFoundError{Name: name, Constraint: rangeLabel(rng)}
		}
		next, err := p.LoadPackage(ctx, name, rng, lc, flags.collectible)
		if err != nil {
			return nil, err
		}
		lc = next
	}
	return lc, nil
}

func renderExports(app *App, lc *loadctx.Context, symbol string) {
	matches := lc.FindExport(symbol)
	if len(matches) == 0 {
		fmt.Fprintf(app.stdout, "%s no loaded module exports %s\n", WarningStyle.Render("!"), symbol)
		return
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Module.String())
	}
	fmt.Fprintf(app.stdout, "%s %s exported by %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(symbol), strings.Join(names, ", "))
}

// unload requests unloading of lc and waits for it to complete.
func unload(ctx context.Context, app *App, lc *loadctx.Context, timeout time.Duration) error {
	obs := lc.Observe()
	if err := lc.RequestUnload(); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := obs.Wait(waitCtx); err != nil {
		return fmt.Errorf("context %s did not unload within %s: %w", obs.Name(), timeout, err)
	}
	fmt.Fprintf(app.stdout, "%s Context %s unloaded\n", SuccessStyle.Render("✓"), obs.Name())
	return nil
}

func rangeLabel(rng versioning.Range) string {
	if rng.IsAll() {
		return "any version"
	}
	return rng.String()
}
