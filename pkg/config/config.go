// Package config loads and validates the reposync application
// configuration: the global settings. Repositories are not listed here;
// they are kept in the registry on disk. The file format
// and load/validate/atomic-save shape follow the same pattern as the
// rest of the ambient stack: YAML via gopkg.in/yaml.v3, errors tagged
// through pkg/errors, permissions applied through pkg/fsutil.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/fsutil"
)

// Config represents reposync's global settings, loaded once at startup.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings holds the knobs that govern every component.
type Settings struct {
	// CacheRoot is the base directory under which repos.d, services.d,
	// pubkeys.d, raw, and solv all live. Everything pkg/layout computes
	// is relative to this one path.
	CacheRoot string `yaml:"cache_root,omitempty"`

	// RepoRefreshDelay is the minimum time between two automatic
	// refreshes of the same repository; a refresh requested sooner is
	// skipped rather than re-probing the remote.
	RepoRefreshDelay time.Duration `yaml:"repo_refresh_delay"`

	// HTTPTimeout is the timeout of the media provider's HTTP client. It
	// bounds each request as a whole, including reading the response
	// body, so a large download must complete within it. Repository type
	// probes use their own client and are not bound by it.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// MaxConcurrentRefresh bounds how many repositories the async
	// downloader workflow refreshes at once.
	MaxConcurrentRefresh int `yaml:"max_concurrent_refresh"`

	// GPGCheckMandatory, when true, makes a failed signature check
	// (unsigned, untrusted, or not verifiable) a refresh failure; when
	// false the refresh goes on and records the signature status. The
	// downloader checks the master index signature of every repository;
	// a repository's own gpgcheck setting is stored but not consulted.
	GPGCheckMandatory bool `yaml:"gpgcheck_mandatory"`

	// LogLevel controls internal/logger's verbosity: debug, info, warn,
	// or error.
	LogLevel string `yaml:"log_level"`
}

// Default configuration values.
const (
	// DefaultRepoRefreshDelay is the default minimum interval between
	// automatic refreshes of the same repository.
	DefaultRepoRefreshDelay = 10 * time.Minute

	// DefaultHTTPTimeout is the default per-request HTTP timeout.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMaxConcurrentRefresh is the default worker pool size for
	// the async downloader workflow.
	DefaultMaxConcurrentRefresh = 5

	// YAMLIndent is the number of spaces used when re-encoding YAML.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults, mirroring
// zypp's historical /etc/zypp layout by rooting everything under the
// user's cache directory when no override is given.
func DefaultConfig() *Config {
	cacheRoot, err := defaultCacheRoot()
	if err != nil {
		cacheRoot = filepath.Join(os.TempDir(), "reposync")
	}

	return &Config{
		Settings: Settings{
			CacheRoot:            cacheRoot,
			RepoRefreshDelay:     DefaultRepoRefreshDelay,
			HTTPTimeout:          DefaultHTTPTimeout,
			MaxConcurrentRefresh: DefaultMaxConcurrentRefresh,
			GPGCheckMandatory:    false,
			LogLevel:             "info",
		},
	}
}

// LoadConfig loads configuration from a file, returning defaults if the
// file does not exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New(errors.KindInvalidAlias, "config.LoadConfig", "config path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config path")
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config data")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration")
	}

	return &cfg, nil
}

// SaveConfig atomically writes the configuration to path.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.New(errors.KindInvalidAlias, "config.SaveConfig", "config path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "invalid config path")
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrapf(err, "failed to create config directory")
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrapf(err, "failed to create temp config file")
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrapf(err, "failed to encode config")
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrapf(err, "failed to replace config file")
	}

	if err := os.Chmod(absPath, fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "failed to chmod config file")
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal config")
	}
	return data, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New(errors.KindInvalidAlias, "config.Validate", "config is nil")
	}
	if c.Settings.CacheRoot == "" {
		return errors.New(errors.KindInvalidAlias, "config.Validate", "cache_root cannot be empty")
	}
	if c.Settings.HTTPTimeout < 0 {
		return errors.New(errors.KindInvalidAlias, "config.Validate", "http_timeout cannot be negative")
	}
	if c.Settings.RepoRefreshDelay < 0 {
		return errors.New(errors.KindInvalidAlias, "config.Validate", "repo_refresh_delay cannot be negative")
	}
	if c.Settings.MaxConcurrentRefresh < 1 {
		return errors.New(errors.KindInvalidAlias, "config.Validate", "max_concurrent_refresh must be at least 1")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Settings.LogLevel)] {
		return errors.New(errors.KindInvalidAlias, "config.Validate",
			"log_level must be one of: debug, info, warn, error")
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, "reposync", "config.yaml"), nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.CacheRoot == "" {
		c.Settings.CacheRoot = defaults.Settings.CacheRoot
	}
	if c.Settings.RepoRefreshDelay == 0 {
		c.Settings.RepoRefreshDelay = defaults.Settings.RepoRefreshDelay
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.MaxConcurrentRefresh == 0 {
		c.Settings.MaxConcurrentRefresh = defaults.Settings.MaxConcurrentRefresh
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}

func defaultCacheRoot() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "reposync"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cache", "reposync"), nil
}
