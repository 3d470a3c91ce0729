// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/puller"
)

type assetsFlagValues struct {
	framework string
	root      string
}

func (f *assetsFlagValues) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.framework, "framework", "f", "", "target framework section (default from configuration)")
	cmd.Flags().StringVar(&f.root, "root", "", "package install root (default ../packages next to the obj directory)")
}

// newInspectCommand creates the `pullpkg inspect` command.
func newInspectCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &assetsFlagValues{}
	cmd := &cobra.Command{
		Use:   "inspect <project.assets.json>",
		Short: "List the packages of a lock document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.parseAssets(cmd.Context(), rootFlags, flags, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s (%d package(s), %d installed)\n",
				TitleStyle.Render("Framework"), res.Framework, len(res.Packages), res.Installed)
			renderPackages(app.stdout, res.Packages, true)
			renderSkipped(app.stdout, res.Skipped)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// parseAssets reads the lock document at path using the framework and
// install root from flags, falling back to configuration and the standard
// pull directory layout.
func (a *App) parseAssets(ctx context.Context, rootFlags *rootFlagValues, flags *assetsFlagValues, path string) (*assets.Result, error) {
	s, err := a.newSession(ctx, rootFlags)
	if err != nil {
		return nil, err
	}

	framework := puller.Framework(flags.framework)
	if framework == "" {
		framework = s.cfg.DefaultFramework
	}
	root := flags.root
	if root == "" {
		root = defaultInstallRoot(path)
	}
	s.logger.Debug("parsing lock document", "path", path, "framework", framework, "root", root)
	return assets.ParseFile(path, framework.String(), root)
}

// defaultInstallRoot mirrors the pull directory layout: <dir>/obj holds the
// lock document and <dir>/packages the restored files.
func defaultInstallRoot(assetsPath string) string {
	dir := filepath.Dir(assetsPath)
	if filepath.Base(dir) == puller.ObjDirName {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, puller.PackagesDirName)
}
