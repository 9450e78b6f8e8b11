package cli

import (
	"context"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/gtechsd/ganesha-go/internal/app"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/config"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// session builds the container on first use so that flags such as --config
// are parsed first and commands like version never touch the config file.
type session struct {
	ctx  context.Context
	opts Options

	once      sync.Once
	container *app.Container
	err       error
}

func newSession(ctx context.Context, opts Options) *session {
	return &session{ctx: ctx, opts: opts}
}

func (s *session) Container() (*app.Container, error) {
	s.once.Do(func() {
		s.container, s.err = app.BuildContainer(s.ctx, s.opts.ConfigPath, s.opts.Verbose)
	})
	return s.container, s.err
}

func (s *session) Close() {
	if s.container != nil {
		_ = s.container.Close()
	}
}

// Execute runs the ganesha command line.
func Execute(ctx context.Context, opts Options) error {
	s := newSession(ctx, opts)
	defer s.Close()
	return newRootCmd(s).ExecuteContext(ctx)
}

// ExecuteDaemon runs the ganesha-daemon command line. Without --config or
// GANESHA_CONFIG it reads the system-wide config.
func ExecuteDaemon(ctx context.Context, opts Options) error {
	if opts.ConfigPath == "" && os.Getenv(config.EnvConfigPath) == "" {
		opts.ConfigPath = config.SystemConfigPath
	}
	s := newSession(ctx, opts)
	defer s.Close()
	return newDaemonRootCmd(s).ExecuteContext(ctx)
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "ganesha",
		Short: "Ganesha - risk-based command authorization",
		Long: "Ganesha classifies every command by risk, checks it against the active trust tier, " +
			"asks for consent where the tier defers, and runs approved commands through the privileged daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root.PersistentFlags(), &s.opts)

	root.AddCommand(newCheckCommand(s))
	root.AddCommand(newSubmitCommand(s))
	root.AddCommand(newPlanCommand(s))
	root.AddCommand(newTierCommand(s))
	root.AddCommand(newAuditCommand(s))
	root.AddCommand(newDaemonCommand(s))
	root.AddCommand(newDoctorCommand(s))
	root.AddCommand(newVersionCommand("ganesha"))
	return root
}

func newDaemonRootCmd(s *session) *cobra.Command {
	var flags daemonFlags
	root := &cobra.Command{
		Use:   "ganesha-daemon",
		Short: "Ganesha privileged executor",
		Long: "ganesha-daemon listens on a local socket (a named pipe on Windows), re-checks every " +
			"request against the access policy and runs the allowed ones.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, s, flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root.PersistentFlags(), &s.opts)
	addDaemonFlags(root.Flags(), &flags)

	root.AddCommand(newDaemonStatusCommand(s))
	root.AddCommand(newVersionCommand("ganesha-daemon"))
	return root
}
