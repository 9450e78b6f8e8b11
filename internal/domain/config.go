package domain

// Config mirrors ~/.ganesha/config.yaml.
type Config struct {
	ConfigFormatVersion string          `yaml:"config_format_version"`
	Policy              PolicySettings  `yaml:"policy"`
	Daemon              DaemonSettings  `yaml:"daemon"`
	Audit               AuditSettings   `yaml:"audit"`
	Consent             ConsentSettings `yaml:"consent"`
}

// PolicySettings is the persisted form of the access policy.
type PolicySettings struct {
	TrustTier           TrustTier `yaml:"trust_tier"`
	AllowPatterns       []string  `yaml:"allow_patterns"`
	DenyPatterns        []string  `yaml:"deny_patterns"`
	AllowedRoots        []string  `yaml:"allowed_roots"`
	MaxExecutionSeconds int       `yaml:"max_execution_seconds"`
	RulesFile           string    `yaml:"rules_file"`
}

// DaemonSettings controls the privileged endpoint.
type DaemonSettings struct {
	SocketPath  string `yaml:"socket_path"`
	SocketGroup string `yaml:"socket_group"`
	SandboxDir  string `yaml:"sandbox_dir"`
}

// AuditSettings controls where audit events are persisted.
type AuditSettings struct {
	StorePath string `yaml:"store_path"`
	SystemLog bool   `yaml:"system_log"`
	// FilePath optionally mirrors every line to a plain append-only file.
	FilePath string `yaml:"file_path,omitempty"`
}

// ConsentSettings selects how the CLI asks for approval.
type ConsentSettings struct {
	Mode string `yaml:"mode"`
}

// Consent modes.
const (
	ConsentModeInteractive = "interactive"
	ConsentModeLine        = "line"
)
