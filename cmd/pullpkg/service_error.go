// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pullpkg/pullpkg/internal/issue"
)

// ServiceError pairs a pull or load failure with how the CLI reports it:
// a pre-styled headline and the issue catalog entry explaining the fix.
type ServiceError struct {
	Err           error
	IssueID       issue.Id
	StyledMessage string
}

func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID, StyledMessage: styledMessage}
}

func (e *ServiceError) Error() string { return e.Err.Error() }

func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError writes the headline and, when the failure maps to a
// catalog entry, its help text in the configured glamour style. A help
// text that fails to render is logged and left out.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, stylePath string) {
	if svcErr == nil {
		return
	}
	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	entry := issue.Get(svcErr.IssueID)
	if entry == nil {
		return
	}
	help, err := entry.Render(stylePath)
	if err != nil {
		slog.Warn("issue help not rendered", "issue", svcErr.IssueID, "style", stylePath, "error", err)
		return
	}
	fmt.Fprint(stderr, help)
}
