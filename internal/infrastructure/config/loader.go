package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/infrastructure/daemon"
	"github.com/gtechsd/ganesha-go/internal/pkg/filesystem"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "GANESHA_CONFIG"

// FileLoader loads YAML configuration from ~/.ganesha/config.yaml (overridable via GANESHA_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created with defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := writeFile(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return cfg, nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Save implements ports.ConfigStore. The file is replaced atomically.
func (l *FileLoader) Save(_ context.Context, cfg domain.Config) error {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return err
	}
	return writeFile(path, cfg)
}

// Path returns the resolved config file path.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".ganesha", "config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeFile(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(domain.SecureFilePermissions); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DefaultConfig is written on first run.
func DefaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Policy: domain.PolicySettings{
			TrustTier:           domain.TierNormal,
			AllowPatterns:       []string{},
			DenyPatterns:        []string{},
			AllowedRoots:        []string{},
			MaxExecutionSeconds: int(domain.DefaultExecutionTimeout.Seconds()),
			RulesFile:           filepath.Join(filesystem.UserHomeDir(), ".ganesha", "rules.yaml"),
		},
		Daemon: domain.DaemonSettings{
			SocketPath:  daemon.DefaultEndpoint,
			SocketGroup: "ganesha",
		},
		Audit: domain.AuditSettings{
			StorePath: filepath.Join(filesystem.UserHomeDir(), ".ganesha", "audit", "audit.db"),
			SystemLog: true,
		},
		Consent: domain.ConsentSettings{Mode: domain.ConsentModeInteractive},
	}
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	defaults := DefaultConfig()
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = defaults.ConfigFormatVersion
	}
	if cfg.Policy.MaxExecutionSeconds == 0 {
		cfg.Policy.MaxExecutionSeconds = defaults.Policy.MaxExecutionSeconds
	}
	if cfg.Daemon.SocketPath == "" {
		cfg.Daemon.SocketPath = defaults.Daemon.SocketPath
	}
	if cfg.Audit.StorePath == "" {
		cfg.Audit.StorePath = defaults.Audit.StorePath
	}
	cfg.Audit.StorePath = filesystem.ExpandPath(cfg.Audit.StorePath)
	cfg.Audit.FilePath = filesystem.ExpandPath(cfg.Audit.FilePath)
	if cfg.Policy.RulesFile != "" {
		cfg.Policy.RulesFile = filesystem.ExpandPath(cfg.Policy.RulesFile)
	}
	if cfg.Consent.Mode == "" {
		cfg.Consent.Mode = defaults.Consent.Mode
	}
	return cfg
}

var _ ports.ConfigStore = (*FileLoader)(nil)
