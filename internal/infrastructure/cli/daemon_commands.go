package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gtechsd/ganesha-go/internal/infrastructure/daemon"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

func newDaemonCommand(s *session) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or query the privileged daemon",
	}

	var flags daemonFlags
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, s, flags)
		},
	}
	addDaemonFlags(runCmd.Flags(), &flags)

	daemonCmd.AddCommand(runCmd, newDaemonStatusCommand(s))
	return daemonCmd
}

func newDaemonStatusCommand(s *session) *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether the daemon endpoint is accepting connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			var client ports.DaemonClient = c.DaemonClient
			if endpoint != "" {
				client = daemon.NewClient(endpoint, daemon.WithClientLogger(c.Logger))
			}
			status := client.Status(cmd.Context())
			out := cmd.OutOrStdout()
			if !status.Reachable {
				fmt.Fprintf(out, "%s %s: %s\n", styleDenied.Render("DOWN"), status.Endpoint, status.Detail)
				return fmt.Errorf("daemon not reachable at %s", status.Endpoint)
			}
			fmt.Fprintf(out, "%s %s\n", styleOK.Render("UP"), status.Endpoint)
			return nil
		},
	}
	addEndpointFlag(cmd.Flags(), &endpoint)
	return cmd
}

// runDaemon serves until SIGINT or SIGTERM. A --tier given on the command
// line is applied through the engine so the change is audited like any other.
func runDaemon(cmd *cobra.Command, s *session, flags daemonFlags) error {
	c, err := s.Container()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.tier.set && flags.tier.tier != c.Policy.TrustTier() {
		if err := c.Policy.SetTrustTier(ctx, flags.tier.tier, "ganesha-daemon --tier"); err != nil {
			return err
		}
	}

	server, err := c.NewDaemonServer(flags.endpoint)
	if err != nil {
		return err
	}
	c.Logger.Info("daemon starting", map[string]interface{}{
		"endpoint": server.Endpoint(),
		"tier":     c.Policy.TrustTier().String(),
	})
	return server.Run(ctx)
}
