// Package config provides configuration management for blobup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rescale/blobup/internal/constants"
	"gopkg.in/ini.v1"
)

// Config is the engine and transport configuration, loaded from an INI file
// and overridable by CLI flags.
//
// File location:
//   - Windows: %USERPROFILE%\.config\blobup\config
//   - Unix: ~/.config/blobup/config
//
// INI format:
//
//	[backend]
//	api_base_url = https://blob.example.com
//	api_key = <token>
//
//	[upload]
//	part_size = 8388608
//	concurrency = 4
//	min_create_size = 4096
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	password =
//	warmup = false
//	no_proxy =
type Config struct {
	APIBaseURL string `ini:"api_base_url"`
	APIKey     string `ini:"api_key"`

	PartSize      int64 `ini:"part_size"`
	Concurrency   int   `ini:"concurrency"`
	MinCreateSize int64 `ini:"min_create_size"`

	ProxyMode     string `ini:"mode"`
	ProxyHost     string `ini:"host"`
	ProxyPort     int    `ini:"port"`
	ProxyUser     string `ini:"user"`
	ProxyPassword string `ini:"password"`
	ProxyWarmup   bool   `ini:"warmup"`
	NoProxy       string `ini:"no_proxy"`
}

// Validation errors.
var (
	ErrMissingAPIBaseURL    = errors.New("api_base_url is required")
	ErrInvalidPartSize      = errors.New("part_size must be positive")
	ErrInvalidConcurrency   = errors.New("concurrency must be between 1 and the configured maximum")
	ErrInvalidMinCreateSize = errors.New("min_create_size must be positive")
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		PartSize:      constants.DefaultPartSize,
		Concurrency:   constants.DefaultConcurrency,
		MinCreateSize: constants.MinCreateSize,
		ProxyMode:     "no-proxy",
	}
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var dir string
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		dir = filepath.Join(userProfile, ".config", "blobup")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "blobup")
	}
	return filepath.Join(dir, "config"), nil
}

// Load reads configuration from an INI file. If path is empty, the default
// path is used. A missing file yields defaults with no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	backend := iniFile.Section("backend")
	cfg.APIBaseURL = backend.Key("api_base_url").MustString(cfg.APIBaseURL)
	cfg.APIKey = backend.Key("api_key").String()

	upload := iniFile.Section("upload")
	cfg.PartSize = upload.Key("part_size").MustInt64(cfg.PartSize)
	cfg.Concurrency = upload.Key("concurrency").MustInt(cfg.Concurrency)
	cfg.MinCreateSize = upload.Key("min_create_size").MustInt64(cfg.MinCreateSize)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)
	cfg.NoProxy = proxy.Key("no_proxy").String()

	return cfg, nil
}

// Save writes configuration to an INI file, creating parent directories as
// needed. The file is written with owner-only permissions since it may
// carry an API key and proxy credentials.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	backend, err := iniFile.NewSection("backend")
	if err != nil {
		return fmt.Errorf("failed to create backend section: %w", err)
	}
	backend.Key("api_base_url").SetValue(cfg.APIBaseURL)
	backend.Key("api_key").SetValue(cfg.APIKey)

	upload, err := iniFile.NewSection("upload")
	if err != nil {
		return fmt.Errorf("failed to create upload section: %w", err)
	}
	upload.Key("part_size").SetValue(fmt.Sprintf("%d", cfg.PartSize))
	upload.Key("concurrency").SetValue(fmt.Sprintf("%d", cfg.Concurrency))
	upload.Key("min_create_size").SetValue(fmt.Sprintf("%d", cfg.MinCreateSize))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("password").SetValue(cfg.ProxyPassword)
	proxy.Key("warmup").SetValue(fmt.Sprintf("%t", cfg.ProxyWarmup))
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable for an upload run.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return ErrMissingAPIBaseURL
	}
	if cfg.PartSize <= 0 {
		return ErrInvalidPartSize
	}
	if cfg.MinCreateSize <= 0 {
		return ErrInvalidMinCreateSize
	}
	if cfg.Concurrency < 1 || cfg.Concurrency > constants.MaxConcurrency {
		return ErrInvalidConcurrency
	}
	return nil
}
