package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory and file locations.
type Paths struct {
	CacheDir     string `toml:"cache_dir"`
	TrackingFile string `toml:"tracking_file"`
	StateDB      string `toml:"state_db"`
}

// Hub describes where the pre-built wheel registry and its releases live.
type Hub struct {
	RegistryURL string `toml:"registry_url"`
	APIURL      string `toml:"api_url"`
	Repository  string `toml:"repository"`
	IssueURL    string `toml:"issue_url"`
}

// GitHub contains credentials for the GitHub REST API.
type GitHub struct {
	Token string `toml:"token"`
}

// Download tunes registry, release, and wheel transfers.
type Download struct {
	Concurrency       int `toml:"concurrency"`
	RetryAttempts     int `toml:"retry_attempts"`
	RetryDelaySeconds int `toml:"retry_delay_seconds"`
	TimeoutSeconds    int `toml:"timeout_seconds"`
}

// Charmcraft configures the external packaging tool.
type Charmcraft struct {
	Binary     string `toml:"binary"`
	MinVersion string `toml:"min_version"`
}

// Charm overrides charm identity detection. When Repository is empty the
// identity is detected from git remotes and charm metadata.
type Charm struct {
	Repository string `toml:"repository"`
	Path       string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ccc.
//
// Configuration sections:
//   - Paths: cache directory, tracking list, and local state database
//   - Hub: registry document and release repository
//   - GitHub: API token (falls back to GH_TOKEN / GITHUB_TOKEN)
//   - Download: concurrency, retry, and timeout settings
//   - Charmcraft: packaging binary and minimum supported version
//   - Charm: optional identity override
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Hub        Hub        `toml:"hub"`
	GitHub     GitHub     `toml:"github"`
	Download   Download   `toml:"download"`
	Charmcraft Charmcraft `toml:"charmcraft"`
	Charm      Charm      `toml:"charm"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ccc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache directory and the parent directories of
// the tracking list and state database.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.CacheDir,
		filepath.Dir(c.Paths.TrackingFile),
		filepath.Dir(c.Paths.StateDB),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CharmsDir returns the directory holding per-charm shared caches.
func (c *Config) CharmsDir() string {
	return filepath.Join(c.Paths.CacheDir, "charms")
}

// DownloadTimeout returns the per-request HTTP timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// RetryDelay returns the initial delay between download attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Download.RetryDelaySeconds) * time.Second
}

// CharmcraftBinary returns the charmcraft executable name.
func (c *Config) CharmcraftBinary() string {
	if strings.TrimSpace(c.Charmcraft.Binary) == "" {
		return defaultCharmcraftBinary
	}
	return c.Charmcraft.Binary
}

// GitBinary returns the git executable name used for identity detection.
func (c *Config) GitBinary() string {
	return "git"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "charmcraftcache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/charmcraftcache"
	}
	return filepath.Join(home, ".cache", "charmcraftcache")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
