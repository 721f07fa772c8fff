package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvSageConfig = "SAGE_CONFIG"
	EnvSageHome   = "SAGE_HOME"
)

// ResolveConfigPath picks the config file: SAGE_CONFIG, then config.yaml or
// config.json under SAGE_HOME (default ~/.sage). When neither file exists the
// JSON path is returned so a later save has somewhere to go.
func ResolveConfigPath() string {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvSageConfig))); configPath != "" {
		return configPath
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvSageHome)))
	if homeDir == "" {
		homeDir = defaultSageHome()
	}

	for _, name := range []string{"config.yaml", "config.yml"} {
		candidate := filepath.Join(homeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return filepath.Join(homeDir, "config.json")
}

func defaultSageHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sage"
	}
	return filepath.Join(home, ".sage")
}
