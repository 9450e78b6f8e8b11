package app

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/google/uuid"

	"github.com/gtechsd/ganesha-go/internal/application/doctor"
	"github.com/gtechsd/ganesha-go/internal/application/gate"
	"github.com/gtechsd/ganesha-go/internal/application/policy"
	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/audit"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/config"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/daemon"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/executor"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/security"
	"github.com/gtechsd/ganesha-go/internal/pkg/logger"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Logger       ports.Logger

	Classifier   *security.Classifier
	Policy       *policy.Engine
	AuditStore   *audit.SQLiteStore
	AuditLogger  *audit.Logger
	DaemonClient *daemon.Client

	GateService   *gate.Service
	DoctorService *doctor.Service
}

// BuildContainer constructs the dependency graph. An empty configPath uses
// GANESHA_CONFIG or ~/.ganesha/config.yaml.
func BuildContainer(ctx context.Context, configPath string, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader(configPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewStd(verbose)

	rules, err := security.LoadRules(cfg.Policy.RulesFile)
	if err != nil {
		log.Warn("classifier rules ignored", map[string]interface{}{"path": cfg.Policy.RulesFile, "error": err.Error()})
		rules = nil
	}
	classifier, err := security.NewClassifier(rules)
	if err != nil {
		log.Warn("classifier rules ignored", map[string]interface{}{"path": cfg.Policy.RulesFile, "error": err.Error()})
		if classifier, err = security.NewClassifier(nil); err != nil {
			return nil, err
		}
	}

	auditOpts := []audit.Option{audit.WithTrace(log)}
	store, err := audit.NewSQLiteStore(cfg.Audit.StorePath)
	if err != nil {
		log.Warn("audit store unavailable", map[string]interface{}{"path": cfg.Audit.StorePath, "error": err.Error()})
	} else {
		auditOpts = append(auditOpts, audit.WithStore(store))
	}
	if cfg.Audit.SystemLog {
		sink, err := audit.NewSystemSink()
		if err != nil {
			log.Warn("system log unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			auditOpts = append(auditOpts, audit.WithSink(sink))
		}
	}
	if cfg.Audit.FilePath != "" {
		sink, err := audit.NewFileSink(cfg.Audit.FilePath)
		if err != nil {
			log.Warn("audit file unavailable", map[string]interface{}{"path": cfg.Audit.FilePath, "error": err.Error()})
		} else {
			auditOpts = append(auditOpts, audit.WithSink(sink))
		}
	}
	auditLogger := audit.NewLogger(auditOpts...)

	initial, err := policy.NewPolicy(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	engine, err := policy.NewEngine(ctx, policy.Options{
		Classifier: classifier,
		Guard:      security.NewGuard(),
		Audit:      auditLogger,
		Logger:     log,
	}, initial)
	if err != nil {
		return nil, err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, daemon.WithClientLogger(log))

	gateService := &gate.Service{
		Policy:      engine,
		Client:      client,
		Audit:       auditLogger,
		ConfigStore: cfgLoader,
		Logger:      log,
		User:        currentUser(),
		SessionID:   uuid.NewString(),
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Classifier:     classifier,
		Daemon:         client,
	}
	c := &Container{
		Config:        cfg,
		ConfigLoader:  cfgLoader,
		Logger:        log,
		Classifier:    classifier,
		Policy:        engine,
		AuditLogger:   auditLogger,
		DaemonClient:  client,
		GateService:   gateService,
		DoctorService: doctorService,
	}
	if store != nil {
		c.AuditStore = store
		doctorService.AuditStore = store
	}
	return c, nil
}

// NewDaemonServer builds the privileged server on the container's policy.
// An empty endpoint uses the configured socket path.
func (c *Container) NewDaemonServer(endpoint string) (*daemon.Server, error) {
	if endpoint == "" {
		endpoint = c.Config.Daemon.SocketPath
	}
	return daemon.NewServer(daemon.Config{
		Endpoint:     endpoint,
		SocketGroup:  c.Config.Daemon.SocketGroup,
		SandboxDir:   c.Config.Daemon.SandboxDir,
		MaxExecution: c.Config.Policy.MaxExecution(),
		Policy:       c.Policy,
		Executor:     executor.NewLocalExecutor(),
		Audit:        c.AuditLogger,
		Logger:       c.Logger,
	})
}

// Close releases the audit sinks and store.
func (c *Container) Close() error {
	var first error
	if c.AuditLogger != nil {
		first = c.AuditLogger.Close()
	}
	if c.AuditStore != nil {
		if err := c.AuditStore.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
