package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Policy.TrustTier != domain.TierNormal {
		t.Fatalf("default tier = %s, want normal", cfg.Policy.TrustTier)
	}
	if cfg.Consent.Mode != domain.ConsentModeInteractive {
		t.Fatalf("default consent mode = %q", cfg.Consent.Mode)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != domain.SecureFilePermissions {
		t.Fatalf("config permissions = %o, want %o", perm, domain.SecureFilePermissions)
	}
}

func TestSaveRoundTripsTierAndPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewFileLoader(path)
	ctx := context.Background()

	cfg, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cfg.SetTrustTier(domain.TierTrusted); err != nil {
		t.Fatal(err)
	}
	if err := cfg.AddDenyPattern(`^curl .*\| *sh`); err != nil {
		t.Fatal(err)
	}
	if err := loader.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "trust_tier: trusted") {
		t.Fatalf("tier not stored in text form:\n%s", raw)
	}

	reloaded, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Policy.TrustTier != domain.TierTrusted {
		t.Fatalf("tier = %s, want trusted", reloaded.Policy.TrustTier)
	}
	if len(reloaded.Policy.DenyPatterns) != 1 {
		t.Fatalf("deny patterns = %v", reloaded.Policy.DenyPatterns)
	}
}

func TestLoadHydratesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("policy:\n  trust_tier: yolo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Policy.TrustTier != domain.TierYolo {
		t.Fatalf("tier = %s, want yolo", cfg.Policy.TrustTier)
	}
	if cfg.Policy.MaxExecutionSeconds != 300 || cfg.Daemon.SocketPath == "" || cfg.Audit.StorePath == "" {
		t.Fatalf("defaults not hydrated: %+v", cfg)
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("policy:\n  trust_tier: godmode\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLoader(path).Load(context.Background()); err == nil {
		t.Fatal("expected parse error for unknown tier")
	}
}

func TestPathHonoursEnvironment(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, custom)
	if got := NewFileLoader("").Path(); got != custom {
		t.Fatalf("Path() = %s, want %s", got, custom)
	}
}
