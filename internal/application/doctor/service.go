package doctor

import (
	"context"
	"errors"
	"fmt"

	appconfig "github.com/gtechsd/ganesha-go/internal/application/config"
	"github.com/gtechsd/ganesha-go/internal/application/policy"
	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Classifier     ports.CommandClassifier
	AuditStore     ports.AuditRepository
	Daemon         ports.DaemonClient
}

// Run executes checks and returns a report. The error is non-nil when any
// check failed.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	if s.ConfigProvider == nil {
		return domain.HealthReport{}, errors.New("doctor.Service dependencies not satisfied")
	}
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s", cfg.ConfigFormatVersion)))
	}

	checks = append(checks, policyCheck(cfg.Policy))

	if s.Classifier != nil {
		checks = append(checks, classifierCheck(s.Classifier))
	} else {
		checks = append(checks, warn("Classifier", "classifier not initialized"))
	}

	if s.AuditStore != nil {
		checks = append(checks, s.auditCheck(ctx))
	} else {
		checks = append(checks, warn("Audit store", "audit store not initialized"))
	}

	if s.Daemon != nil {
		status := s.Daemon.Status(ctx)
		if status.Reachable {
			checks = append(checks, ok("Daemon", fmt.Sprintf("%s %s", status.Endpoint, status.Detail)))
		} else {
			checks = append(checks, warn("Daemon", fmt.Sprintf("%s not reachable: %s", status.Endpoint, status.Detail)))
		}
	}

	report := domain.HealthReport{Checks: checks}
	if failed, ok := report.FirstFailure(); ok {
		return report, fmt.Errorf("%s: %s", failed.Name, failed.Details)
	}
	return report, nil
}

func policyCheck(settings domain.PolicySettings) domain.HealthCheck {
	p, err := policy.NewPolicy(settings)
	if err != nil {
		return fail("Access policy", err.Error())
	}
	details := fmt.Sprintf("tier %s, %d allow, %d deny, %d roots",
		p.Tier(), len(p.AllowPatterns()), len(p.DenyPatterns()), len(p.AllowedRoots()))
	if p.Tier() == domain.TierYolo || len(p.AllowPatterns()) > 0 {
		return warn("Access policy", details)
	}
	return ok("Access policy", details)
}

// classifierCheck runs a few known commands through the classifier.
func classifierCheck(c ports.CommandClassifier) domain.HealthCheck {
	probes := []struct {
		command string
		want    domain.OperationRisk
	}{
		{"ls -la", domain.RiskReadOnly},
		{"rm -rf /", domain.RiskCritical},
		{`sudo -u root sh -c "rm -rf /"`, domain.RiskCritical},
		{"", domain.RiskMedium},
	}
	for _, probe := range probes {
		if got := c.Classify(probe.command); got != probe.want {
			return fail("Classifier", fmt.Sprintf("%q classified %s, want %s", probe.command, got, probe.want))
		}
	}
	return ok("Classifier", "self-test passed")
}

func (s *Service) auditCheck(ctx context.Context) domain.HealthCheck {
	report, err := s.AuditStore.Verify(ctx)
	if err != nil {
		return fail("Audit store", err.Error())
	}
	if !report.Valid {
		return fail("Audit store", fmt.Sprintf("%s: %s", s.AuditStore.Path(), report.Detail))
	}
	return ok("Audit store", fmt.Sprintf("%s, %d records, chain intact", s.AuditStore.Path(), report.Records))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
