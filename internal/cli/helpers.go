package cli

import (
	"fmt"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/repocore/reposync/internal/logger"
	"github.com/repocore/reposync/pkg/config"
	"github.com/repocore/reposync/pkg/coordinator"
	"github.com/repocore/reposync/pkg/downloader"
	"github.com/repocore/reposync/pkg/keyring"
	"github.com/repocore/reposync/pkg/layout"
	"github.com/repocore/reposync/pkg/media"
)

// These variables are set by the root command from persistent flags.
var (
	ConfigPath *string
	Verbose    *bool
	LogFormat  *string
)

// loadConfig resolves the effective configuration, preferring an
// explicit --config path and falling back to the platform default.
func loadConfig() (*config.Config, error) {
	path := ""
	if ConfigPath != nil {
		path = *ConfigPath
	}
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("resolve default config path: %w", err)
		}
		path = defaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Settings.LogLevel
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	format := logger.FormatText
	if LogFormat != nil && *LogFormat == "json" {
		format = logger.FormatJSON
	}
	logger.InitLogger(level, format)

	return cfg, nil
}

// loadCoordinator assembles a Coordinator wired from the effective
// configuration: cache layout, HTTP media provider, keyring, and
// downloader all flow from cfg.Settings.
func loadCoordinator() (*coordinator.Coordinator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	l := layout.New(cfg.Settings.CacheRoot)
	m := media.NewDispatcher(cfg.Settings.HTTPTimeout)

	kr := keyring.New(openpgp.EntityList{}, l.PubkeyCacheDir(), nil)
	if err := kr.LoadCache(); err != nil {
		return nil, fmt.Errorf("load key cache: %w", err)
	}

	dl := &downloader.Downloader{
		Media:     m,
		Keys:      kr,
		Mandatory: cfg.Settings.GPGCheckMandatory,
	}

	c := coordinator.New(l, m, dl, refreshDelayOrDefault(cfg.Settings.RepoRefreshDelay))
	return c, nil
}

// refreshDelayOrDefault guards against a config file that explicitly
// sets repo_refresh_delay to a non-positive value, which would disable
// the coordinator's refresh-coalescing entirely.
func refreshDelayOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return config.DefaultRepoRefreshDelay
	}
	return d
}
