package fsutil

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the platform-specific data directory for the application.
// On Linux it honours XDG_DATA_HOME and falls back to ~/.local/share/mediafetch.
func GetDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// GetDefaultStoreDir returns the directory used by the filesystem store when
// no store URI is configured.
func GetDefaultStoreDir() string {
	dataDir, err := GetDataDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName, "media")
	}
	return filepath.Join(dataDir, "media")
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName, "config.yaml"), nil
}
