package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/version"
)

// ============================================================================
// Doctor Command
// ============================================================================

func newDoctorCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, policy, audit store and daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			if c.DoctorService == nil {
				return fmt.Errorf("doctor service unavailable")
			}
			report, err := c.DoctorService.Run(cmd.Context())

			// Display report even if there were errors
			RenderHealthReport(cmd.OutOrStdout(), report)

			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			return nil
		},
	}
}

// ============================================================================
// Version Command
// ============================================================================

func newVersionCommand(binary string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayVersionInformation(cmd.OutOrStdout(), binary)
		},
	}
}

func displayVersionInformation(out io.Writer, binary string) error {
	fmt.Fprintf(out, "%s version %s\n", binary, version.Version)

	if version.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", version.Commit)
	}

	if version.BuildDate != "" {
		fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
	}

	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())

	return nil
}

// ============================================================================
// Exit Codes
// ============================================================================

// Exit codes let scripts tell a refusal apart from a broken setup.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitDenied    = 2
	ExitDeclined  = 3
	ExitTransport = 4
	ExitTimeout   = 5
)

// ExitCode maps an error returned by Execute onto a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrSecurityViolation), errors.Is(err, domain.ErrPolicyDenied):
		return ExitDenied
	case errors.Is(err, domain.ErrConsentDeclined):
		return ExitDeclined
	case errors.Is(err, domain.ErrTransport):
		return ExitTransport
	case errors.Is(err, domain.ErrTimeout):
		return ExitTimeout
	default:
		return ExitFailure
	}
}
