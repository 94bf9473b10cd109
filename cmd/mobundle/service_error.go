// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/mobundle/mobundle/internal/closure"
	"github.com/mobundle/mobundle/internal/config"
	"github.com/mobundle/mobundle/internal/infoplist"
	"github.com/mobundle/mobundle/internal/issue"
	"github.com/mobundle/mobundle/internal/manifest"
	"github.com/mobundle/mobundle/internal/pipeline"
	"github.com/mobundle/mobundle/internal/project"
	"github.com/mobundle/mobundle/internal/signer"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/pkg/types"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps a failure to the catalogue entry that explains how to
// fix it. An issue attached by the failing layer wins over the error kind.
func classifyError(err error) issue.Id {
	if id := issue.IssueOf(err); id != 0 {
		return id
	}

	if nf, ok := errors.AsType[*toolchain.NotFoundError](err); ok {
		switch nf.Component {
		case toolchain.ComponentSDK, toolchain.ComponentPlatform:
			return issue.AndroidSDKNotFoundId
		case toolchain.ComponentNDK, toolchain.ComponentSysroot:
			return issue.AndroidNDKNotFoundId
		case toolchain.ComponentXcode, toolchain.ComponentAppleSDK:
			return issue.XcodeNotFoundId
		default:
			return issue.BuildToolMissingId
		}
	}
	if mi, ok := errors.AsType[*types.MissingInputError](err); ok && mi.Kind == "bundletool jar" {
		return issue.BundletoolMissingId
	}

	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		return issue.ProjectNotFoundId
	case errors.Is(err, project.ErrInvalidManifest):
		return issue.ManifestInvalidId
	case errors.Is(err, target.ErrUnsupportedTarget), errors.Is(err, pipeline.ErrMixedSimulator):
		return issue.UnsupportedTargetId
	case errors.Is(err, closure.ErrDependencyNotFound):
		return issue.DependencyNotFoundId
	case errors.Is(err, manifest.ErrIncomplete), errors.Is(err, infoplist.ErrIncomplete):
		return issue.ManifestIncompleteId
	case errors.Is(err, signer.ErrVerificationFailed):
		return issue.VerificationFailedId
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	}

	if se, ok := errors.AsType[*pipeline.StageError](err); ok {
		switch se.Stage {
		case pipeline.StageCompile:
			if errors.Is(err, toolexec.ErrToolFailed) {
				return issue.CompilationFailedId
			}
		case pipeline.StageSign:
			return issue.SigningFailedId
		case pipeline.StagePublish:
			return issue.PublishFailedId
		}
	}
	return 0
}

// issueStyle picks the glamour style for the catalogue page. "auto" renders
// without colors unless w is a terminal.
func issueStyle(scheme config.ColorScheme, w io.Writer) string {
	switch scheme {
	case config.ColorSchemeDark, config.ColorSchemeLight:
		return string(scheme)
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return string(config.ColorSchemeDark)
	}
	return "notty"
}

// renderServiceError renders a ServiceError in the CLI layer.
// It prints any styled message first, then the optional issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, style string, logger *log.Logger) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(style)
		if renderErr != nil {
			logger.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// list their suggestions and, in verbose mode, the full chain.
func formatErrorForDisplay(err error, verbose bool) string {
	if ae, ok := errors.AsType[*issue.ActionableError](err); ok {
		return ae.Format(verbose)
	}
	return err.Error()
}
