// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The application services (policy engine, gate, doctor) depend only on these
// interfaces; the infrastructure layer provides the adapters: the regex
// classifier and guards, the SQLite audit store and system log sinks, the
// local executor, the daemon client and the CLI consent handlers.
package ports

import (
	"context"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.ganesha/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ConfigStore is a ConfigProvider that can also persist changes.
type ConfigStore interface {
	ConfigProvider
	Save(context.Context, domain.Config) error
}

// CommandClassifier maps a command to its intrinsic risk. It must be pure.
type CommandClassifier interface {
	Classify(command string) domain.OperationRisk
}

// GuardFinding describes a security guard hit.
type GuardFinding struct {
	Kind    domain.ViolationKind
	Reason  string
	Pattern string
}

// SecurityGuard detects self-invocation, manipulation and tampering. Hits are
// denied under every tier.
type SecurityGuard interface {
	// InspectCommand checks a command about to be run.
	InspectCommand(command string) (GuardFinding, bool)
	// InspectText checks free text such as a plan's task description.
	InspectText(text string) (GuardFinding, bool)
}

// PolicyChecker is the policy decision point.
type PolicyChecker interface {
	Check(command string) domain.Decision
	CheckIn(command, workingDir string) domain.Decision
	// CheckText screens free text; ok is true when a guard fired.
	CheckText(text string) (domain.Decision, bool)
	TrustTier() domain.TrustTier
	// SetTrustTier is the only write path and is always audited.
	SetTrustTier(ctx context.Context, tier domain.TrustTier, actor string) error
}

// CommandExecutor runs a command in a child process.
type CommandExecutor interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ProcessResult, error)
}

// ConsentHandler obtains approval for decisions the policy defers.
type ConsentHandler interface {
	RequestConsent(ctx context.Context, action domain.Action) (bool, error)
	RequestBatchConsent(ctx context.Context, plan domain.ExecutionPlan) (domain.BatchConsent, error)
	// Interactive reports whether a human answers the requests.
	Interactive() bool
}

// DaemonClient talks to the privileged daemon.
type DaemonClient interface {
	Submit(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)
	Status(ctx context.Context) domain.DaemonStatus
}

// AuditLogger records security-relevant events. Log returns an error only when
// no durable sink accepted the event.
type AuditLogger interface {
	Log(ctx context.Context, event domain.Event) error
}

// AuditSink durably persists one rendered event line.
type AuditSink interface {
	Name() string
	Write(event domain.Event, line string) error
	Close() error
}

// AuditRepository is the queryable, tamper-evident event store.
type AuditRepository interface {
	Append(ctx context.Context, event domain.Event, line string) error
	Records(ctx context.Context, limit int, search string) ([]domain.AuditRecord, error)
	Verify(ctx context.Context) (domain.ChainReport, error)
	ExportJSON(ctx context.Context, dest string) error
	Path() string
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
