// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/pullpkg/pullpkg/internal/config"
	"github.com/pullpkg/pullpkg/internal/issue"
	"github.com/pullpkg/pullpkg/internal/pullfile"
	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/loadctx"
	"github.com/pullpkg/pullpkg/pkg/puller"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

// Operations used by internal/config when wrapping load failures.
const (
	opLoadConfig     = "load configuration"
	opValidateConfig = "validate configuration"
)

// classifyError maps a command failure to an issue catalog ID and returns a
// styled message for CLI rendering. Actionable error details are preserved.
// Errors with no catalog entry get ID 0.
func classifyError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	// The engine binary check comes first: a missing binary is also a
	// restore failure.
	switch {
	case errors.Is(err, exec.ErrNotFound):
		issueID = issue.EngineNotFoundId
	case errors.Is(err, pullfile.ErrNotFound):
		issueID = issue.PullfileNotFoundId
	case errors.Is(err, pullfile.ErrParse), errors.Is(err, pullfile.ErrUnsupportedFormat):
		issueID = issue.PullfileParseErrorId
	case isConfigLoadError(err):
		issueID = issue.ConfigLoadFailedId
	case errors.Is(err, puller.ErrConfiguration), errors.Is(err, versioning.ErrInvalidRange),
		errors.Is(err, versioning.ErrInvalidVersion):
		issueID = issue.ConfigurationInvalidId
	case errors.Is(err, puller.ErrDirectoryPreparation):
		issueID = issue.DirectoryPreparationFailedId
	case errors.Is(err, puller.ErrRestoreFailed):
		issueID = issue.RestoreFailedId
	case errors.Is(err, assets.ErrAssetsParse):
		issueID = issue.AssetsParseFailedId
	case errors.Is(err, loadctx.ErrModuleNotFound):
		issueID = issue.ModuleNotFoundId
	case errors.Is(err, loadctx.ErrInvalidModuleFormat):
		issueID = issue.InvalidModuleFormatId
	case errors.Is(err, loadctx.ErrContextUnloading):
		issueID = issue.ContextUnloadingId
	case errors.Is(err, loadctx.ErrUnsupportedOperation):
		issueID = issue.UnsupportedOperationId
	case errors.Is(err, puller.ErrIncompatibleContext):
		issueID = issue.IncompatibleContextId
	case errors.Is(err, puller.ErrNotPulled):
		issueID = issue.NotPulledId
	case errors.Is(err, os.ErrPermission):
		issueID = issue.PermissionDeniedId
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

func isConfigLoadError(err error) bool {
	if errors.Is(err, config.ErrConfigNotFound) || errors.Is(err, config.ErrInvalidLoadOptions) {
		return true
	}
	var ae *issue.ActionableError
	return errors.As(err, &ae) && (ae.Operation == opLoadConfig || ae.Operation == opValidateConfig)
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors use their Format method, which lists the cause chain in
// verbose mode.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// exitCode returns the process exit code for err.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	return 1
}
