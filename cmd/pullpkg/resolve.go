// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/loadctx"
	"github.com/pullpkg/pullpkg/pkg/resolver"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

type resolveFlagValues struct {
	assetsFlagValues
	min       string
	rangeText string
}

// newResolveCommand creates the `pullpkg resolve` command.
func newResolveCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &resolveFlagValues{}
	cmd := &cobra.Command{
		Use:   "resolve <project.assets.json> <module>",
		Short: "Resolve a module name against a lock document",
		Long: `Resolve a module name against a lock document.

With --min the highest module whose version is at least the given version is
chosen. With --range the highest module inside the range is chosen. Without
either, any version matches.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.min != "" && flags.rangeText != "" {
				return errors.New("--min and --range cannot be used together")
			}
			res, err := app.parseAssets(cmd.Context(), rootFlags, &flags.assetsFlagValues, args[0])
			if err != nil {
				return err
			}
			m, err := resolveModule(resolver.New(res.Packages), args[1], flags)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(m.String()))
			fmt.Fprintf(app.stdout, "  %s\n", m.Path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.min, "min", "", "minimum module version")
	cmd.Flags().StringVar(&flags.rangeText, "range", "", "module version range, e.g. [1.0,2.0)")
	return cmd
}

func resolveModule(r *resolver.Resolver, name string, flags *resolveFlagValues) (assets.Module, error) {
	var (
		m          assets.Module
		ok         bool
		constraint string
	)
	switch {
	case flags.rangeText != "":
		rng, err := versioning.ParseRange(flags.rangeText)
		if err != nil {
			return assets.Module{}, err
		}
		m, ok = r.ResolveRange(name, rng)
		constraint = rng.String()
	case flags.min != "":
		v, err := versioning.ParseVersion(flags.min)
		if err != nil {
			return assets.Module{}, err
		}
		m, ok = r.ResolveMinimumVersion(name, &v)
		constraint = ">= " + v.String()
	default:
		m, ok = r.ResolveMinimumVersion(name, nil)
		constraint = "any version"
	}
	if !ok {
		return assets.Module{}, &loadctx.ModuleNotFoundError{Name: name, Constraint: constraint}
	}
	return m, nil
}
