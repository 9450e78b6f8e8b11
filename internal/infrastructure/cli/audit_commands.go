package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gtechsd/ganesha-go/internal/app"
	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

const defaultAuditLimit = 50

func newAuditCommand(s *session) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the tamper-evident audit log",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auditStore(s)
			if err != nil {
				return err
			}
			records, err := store.Records(cmd.Context(), limit, "")
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit events recorded yet.")
				return nil
			}
			RenderAuditRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", defaultAuditLimit, "Number of events to show (0 for all)")

	var searchLimit int
	searchCmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find audit events whose line or command contains text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auditStore(s)
			if err != nil {
				return err
			}
			records, err := store.Records(cmd.Context(), searchLimit, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching audit events.")
				return nil
			}
			RenderAuditRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", defaultAuditLimit, "Number of events to show (0 for all)")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			if c.AuditStore == nil {
				return fmt.Errorf("audit store unavailable")
			}
			return verifyAuditChain(cmd, c)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export the audit log as JSON lines, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auditStore(s)
			if err != nil {
				return err
			}
			if err := store.ExportJSON(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("export audit log: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported audit log from %s to %s\n", store.Path(), args[0])
			return nil
		},
	}

	auditCmd.AddCommand(listCmd, searchCmd, verifyCmd, exportCmd)
	return auditCmd
}

func auditStore(s *session) (ports.AuditRepository, error) {
	c, err := s.Container()
	if err != nil {
		return nil, err
	}
	if c.AuditStore == nil {
		return nil, fmt.Errorf("audit store unavailable")
	}
	return c.AuditStore, nil
}

// verifyAuditChain reports a broken chain as log tampering, so the finding
// reaches the system log even though the store itself is suspect.
func verifyAuditChain(cmd *cobra.Command, c *app.Container) error {
	ctx := cmd.Context()
	report, err := c.AuditStore.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify audit log: %w", err)
	}
	out := cmd.OutOrStdout()
	if report.Valid {
		fmt.Fprintf(out, "%s %d records, chain intact (%s)\n", styleOK.Render("OK"), report.Records, c.AuditStore.Path())
		return nil
	}

	fmt.Fprintf(out, "%s %s\n", styleBlock.Render("TAMPERED"), report.Detail)
	event := domain.NewEvent(domain.EventLogTamperingAttempt, "Audit chain verification failed").
		User(c.GateService.User).
		Reason(report.Detail).
		Session(c.GateService.SessionID).
		Build()
	if err := c.AuditLogger.Log(context.WithoutCancel(ctx), event); err != nil {
		c.Logger.Error("audit write failed", err, map[string]interface{}{"event": event.ID().String()})
	}
	return fmt.Errorf("%w: audit chain broken at record %d", domain.ErrSecurityViolation, report.BrokenAt)
}
