package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	var errs []error
	if err := validatePolicy(cfg.Policy); err != nil {
		errs = append(errs, err)
	}
	if err := validateDaemon(cfg.Daemon); err != nil {
		errs = append(errs, err)
	}
	if err := validateConsent(cfg.Consent); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validatePolicy(p domain.PolicySettings) error {
	if !p.TrustTier.Valid() {
		return fmt.Errorf("policy.trust_tier invalid: %d", int(p.TrustTier))
	}
	if p.MaxExecutionSeconds < 0 {
		return fmt.Errorf("policy.max_execution_seconds must be >= 0")
	}
	for _, pattern := range p.AllowPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("policy.allow_patterns %q: %w", pattern, err)
		}
	}
	for _, pattern := range p.DenyPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("policy.deny_patterns %q: %w", pattern, err)
		}
	}
	for _, root := range p.AllowedRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("policy.allowed_roots %q must be absolute", root)
		}
	}
	return nil
}

func validateDaemon(d domain.DaemonSettings) error {
	if strings.TrimSpace(d.SocketPath) == "" {
		return fmt.Errorf("daemon.socket_path must be set")
	}
	if d.SandboxDir != "" && !filepath.IsAbs(d.SandboxDir) {
		return fmt.Errorf("daemon.sandbox_dir %q must be absolute", d.SandboxDir)
	}
	return nil
}

func validateConsent(c domain.ConsentSettings) error {
	switch strings.ToLower(c.Mode) {
	case "", domain.ConsentModeInteractive, domain.ConsentModeLine:
		return nil
	default:
		return fmt.Errorf("consent.mode must be interactive|line, got %s", c.Mode)
	}
}
