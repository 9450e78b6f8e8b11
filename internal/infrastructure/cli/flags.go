package cli

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

// tierValue is a pflag.Value that parses trust tier names and remembers
// whether the flag was given at all.
type tierValue struct {
	tier domain.TrustTier
	set  bool
}

func (v *tierValue) String() string {
	if !v.set {
		return ""
	}
	return v.tier.String()
}

func (v *tierValue) Set(value string) error {
	tier, err := domain.ParseTrustTier(value)
	if err != nil {
		return err
	}
	v.tier = tier
	v.set = true
	return nil
}

func (v *tierValue) Type() string { return "tier" }

var _ pflag.Value = (*tierValue)(nil)

type executionFlags struct {
	workingDir  string
	timeout     time.Duration
	explanation string
	yes         bool
}

type daemonFlags struct {
	tier     tierValue
	endpoint string
}

func addGlobalFlags(fs *pflag.FlagSet, opts *Options) {
	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Config file (default $GANESHA_CONFIG or ~/.ganesha/config.yaml)")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Enable debug logging")
}

func addExecutionFlags(fs *pflag.FlagSet, f *executionFlags) {
	fs.StringVar(&f.workingDir, "cwd", "", "Working directory (default: the daemon sandbox)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Execution timeout, capped by max_execution_seconds")
	fs.StringVar(&f.explanation, "explain", "", "Explanation shown when consent is requested")
	addYesFlag(fs, &f.yes)
}

func addYesFlag(fs *pflag.FlagSet, yes *bool) {
	fs.BoolVarP(yes, "yes", "y", false, "Approve deferred actions without prompting (refused after a security violation)")
}

func addDaemonFlags(fs *pflag.FlagSet, f *daemonFlags) {
	fs.Var(&f.tier, "tier", "Trust tier for this daemon run (safe|normal|trusted|yolo)")
	addEndpointFlag(fs, &f.endpoint)
}

func addEndpointFlag(fs *pflag.FlagSet, endpoint *string) {
	fs.StringVar(endpoint, "socket", "", "Daemon endpoint (default: daemon.socket_path from config)")
}
