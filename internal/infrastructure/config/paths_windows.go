//go:build windows

package config

// SystemConfigPath is read by the daemon when no config is given.
const SystemConfigPath = `C:\ProgramData\Ganesha\config.yaml`
