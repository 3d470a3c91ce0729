// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/loadctx"
	"github.com/pullpkg/pullpkg/pkg/puller"
)

func renderSummary(w io.Writer, p *puller.Puller, summary puller.RestoreSummary) {
	fmt.Fprintf(w, "%s Pulled %d package(s) for %s into %s in %s\n",
		SuccessStyle.Render("✓"),
		summary.InstallCount,
		CmdStyle.Render(p.Spec().Framework.String()),
		CmdStyle.Render(p.Spec().Directory),
		summary.Duration.Round(time.Millisecond))
}

// renderPackages prints one line per package and, when detailed, its
// dependencies and modules.
func renderPackages(w io.Writer, pkgs []assets.Package, detailed bool) {
	if len(pkgs) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(no packages)"))
		return
	}
	for _, pkg := range pkgs {
		fmt.Fprintf(w, "  %s %s  %s\n", CmdStyle.Render(pkg.Name), pkg.Version, VerboseStyle.Render(pkg.PURL()))
		if !detailed {
			continue
		}
		for _, dep := range pkg.Dependencies {
			fmt.Fprintf(w, "    %s %s %s\n", SubtitleStyle.Render("depends on"), dep.Name, dep.Range)
		}
		for _, m := range pkg.Modules {
			fmt.Fprintf(w, "    %s %s\n", SubtitleStyle.Render("module"), m.Path)
		}
	}
}

func renderSkipped(w io.Writer, skipped []assets.Skipped) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("Skipped %d entr%s:", len(skipped), plural(len(skipped), "y", "ies"))))
	for _, s := range skipped {
		entry := s.Entry
		if s.Dependency != "" {
			entry += " → " + s.Dependency
		}
		fmt.Fprintf(w, "  %s %s\n", entry, SubtitleStyle.Render("("+s.Reason+")"))
	}
}

func renderLoaded(w io.Writer, c *loadctx.Context) {
	loaded := c.Loaded()
	kind := "non-collectible"
	if c.Collectible() {
		kind = "collectible"
	}
	fmt.Fprintf(w, "%s %s (%s): %d module(s)\n", TitleStyle.Render("Context"), c.Name(), kind, len(loaded))
	for _, m := range loaded {
		fmt.Fprintf(w, "  %s %s  %s\n", CmdStyle.Render(m.Module.String()),
			SubtitleStyle.Render(m.Format.String()), VerboseStyle.Render(m.Origin.String()))
	}
}

func renderDiagnostics(w io.Writer, diags []string) {
	for _, d := range diags {
		fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("!"), strings.TrimSpace(d))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
