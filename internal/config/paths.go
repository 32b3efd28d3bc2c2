// Package config provides configuration management for blobup.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the log directory used by the CLI.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\blobup\logs
//   - Other systems: os.UserConfigDir()/blobup/logs (~/.config/blobup/logs on
//     Linux by default, ~/Library/Application Support/blobup/logs on macOS)
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "blobup-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "blobup", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "blobup-logs")
		}
		return filepath.Join(homeDir, ".config", "blobup", "logs")
	}
	return filepath.Join(configDir, "blobup", "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist, with
// permissions restricted to the owner.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// LogFilePath returns the path of the log file within LogDirectory. The
// file name is fixed (blobup.log), not one file per day.
func LogFilePath() string {
	return filepath.Join(LogDirectory(), "blobup.log")
}
