package cli

import (
	"fmt"

	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/fsutil"
	"github.com/cperrin88/mediafetch/pkg/logger"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
	NoColor    *bool
)

// loadConfig loads the configuration and initializes logging from it. The
// --verbose flag overrides the configured log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := logger.Options{
		Level:  cfg.Settings.LogLevel,
		Format: cfg.Settings.LogFormat,
		File:   cfg.Settings.LogFile,
	}
	if Verbose != nil && *Verbose {
		opts.Level = "debug"
	}
	if NoColor != nil {
		opts.NoColor = *NoColor
	}
	logger.InitLogger(opts)

	return cfg, nil
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := fsutil.GetConfigPath()
	if err != nil {
		// An empty path makes LoadConfig and SaveConfig report the problem.
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}
