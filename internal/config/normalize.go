package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHub()
	c.normalizeGitHub()
	c.normalizeDownload()
	c.normalizeCharmcraft()
	c.normalizeCharm()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("CCC_CACHE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CacheDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TrackingFile) == "" {
		c.Paths.TrackingFile = defaultTrackingFile
	}
	if c.Paths.TrackingFile, err = expandPath(c.Paths.TrackingFile); err != nil {
		return fmt.Errorf("paths.tracking_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDB) == "" {
		c.Paths.StateDB = filepath.Join(c.Paths.CacheDir, defaultStateDBName)
	}
	if c.Paths.StateDB, err = expandPath(c.Paths.StateDB); err != nil {
		return fmt.Errorf("paths.state_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeHub() {
	if value, ok := os.LookupEnv("CCC_REGISTRY_URL"); ok && strings.TrimSpace(value) != "" {
		c.Hub.RegistryURL = value
	}
	c.Hub.RegistryURL = strings.TrimSpace(c.Hub.RegistryURL)
	if c.Hub.RegistryURL == "" {
		c.Hub.RegistryURL = defaultRegistryURL
	}
	c.Hub.APIURL = strings.TrimRight(strings.TrimSpace(c.Hub.APIURL), "/")
	if c.Hub.APIURL == "" {
		c.Hub.APIURL = defaultAPIURL
	}
	c.Hub.Repository = strings.Trim(strings.TrimSpace(c.Hub.Repository), "/")
	if c.Hub.Repository == "" {
		c.Hub.Repository = defaultHubRepository
	}
	c.Hub.IssueURL = strings.TrimSpace(c.Hub.IssueURL)
	if c.Hub.IssueURL == "" {
		c.Hub.IssueURL = defaultIssueURL
	}
}

func (c *Config) normalizeGitHub() {
	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	if c.GitHub.Token == "" {
		if value, ok := os.LookupEnv("GH_TOKEN"); ok && strings.TrimSpace(value) != "" {
			c.GitHub.Token = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
			c.GitHub.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.Concurrency <= 0 {
		c.Download.Concurrency = defaultConcurrency
	}
	if c.Download.Concurrency > maxConcurrency {
		c.Download.Concurrency = maxConcurrency
	}
	if c.Download.RetryAttempts <= 0 {
		c.Download.RetryAttempts = defaultRetryAttempts
	}
	if c.Download.RetryDelaySeconds <= 0 {
		c.Download.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeCharmcraft() {
	c.Charmcraft.Binary = strings.TrimSpace(c.Charmcraft.Binary)
	if c.Charmcraft.Binary == "" {
		c.Charmcraft.Binary = defaultCharmcraftBinary
	}
	c.Charmcraft.MinVersion = strings.TrimPrefix(strings.TrimSpace(c.Charmcraft.MinVersion), "v")
	if c.Charmcraft.MinVersion == "" {
		c.Charmcraft.MinVersion = defaultMinVersion
	}
}

func (c *Config) normalizeCharm() {
	c.Charm.Repository = strings.TrimSpace(c.Charm.Repository)
	c.Charm.Path = strings.TrimSpace(c.Charm.Path)
	if c.Charm.Repository != "" && c.Charm.Path == "" {
		c.Charm.Path = "."
	}
	if c.Charm.Path != "" {
		c.Charm.Path = path.Clean(filepath.ToSlash(c.Charm.Path))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
