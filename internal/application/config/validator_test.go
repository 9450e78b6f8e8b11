package config

import (
	"testing"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Policy:              domain.PolicySettings{TrustTier: domain.TierNormal, MaxExecutionSeconds: 60},
		Daemon:              domain.DaemonSettings{SocketPath: "/var/run/ganesha/privileged.sock"},
		Consent:             domain.ConsentSettings{Mode: domain.ConsentModeInteractive},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{name: "bad tier", mutate: func(c *domain.Config) { c.Policy.TrustTier = domain.TrustTier(7) }, wantErr: true},
		{name: "bad allow pattern", mutate: func(c *domain.Config) { c.Policy.AllowPatterns = []string{"[a-"} }, wantErr: true},
		{name: "bad deny pattern", mutate: func(c *domain.Config) { c.Policy.DenyPatterns = []string{"(?<x>"} }, wantErr: true},
		{name: "relative root", mutate: func(c *domain.Config) { c.Policy.AllowedRoots = []string{"src"} }, wantErr: true},
		{name: "negative timeout", mutate: func(c *domain.Config) { c.Policy.MaxExecutionSeconds = -1 }, wantErr: true},
		{name: "missing socket", mutate: func(c *domain.Config) { c.Daemon.SocketPath = " " }, wantErr: true},
		{name: "relative sandbox", mutate: func(c *domain.Config) { c.Daemon.SandboxDir = "tmp" }, wantErr: true},
		{name: "unknown consent mode", mutate: func(c *domain.Config) { c.Consent.Mode = "always-yes" }, wantErr: true},
		{name: "line consent mode", mutate: func(c *domain.Config) { c.Consent.Mode = domain.ConsentModeLine }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
