package internal

import (
	"fmt"
	"runtime"

	"github.com/sagebot/sage/pkg/config"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/store"
)

const Logo = "🌿"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string

	configOverride string
)

// SetConfigPath overrides the resolved config path for this process.
func SetConfigPath(path string) {
	configOverride = path
}

func GetConfigPath() string {
	if configOverride != "" {
		return configOverride
	}
	return config.ResolveConfigPath()
}

func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(GetConfigPath())
}

// ConfigureLogging applies the log section of cfg. debug forces DEBUG.
func ConfigureLogging(cfg *config.Config, debug bool) error {
	level := logger.ParseLevel(cfg.Log.Level)
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return err
		}
	}
	return nil
}

// OpenStore opens the document store named by cfg.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}
