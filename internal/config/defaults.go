package config

const (
	defaultConfigPath        = "~/.config/charmcraftcache/config.toml"
	defaultTrackingFile      = "~/.config/charmcraftcache/charms.toml"
	defaultStateDBName       = "state.db"
	defaultRegistryURL       = "https://raw.githubusercontent.com/canonical/charmcraftcache-hub/main/charms.json"
	defaultAPIURL            = "https://api.github.com"
	defaultHubRepository     = "canonical/charmcraftcache-hub"
	defaultIssueURL          = "https://github.com/canonical/charmcraftcache-hub/issues/new"
	defaultConcurrency       = 4
	maxConcurrency           = 32
	defaultRetryAttempts     = 3
	defaultRetryDelaySeconds = 1
	defaultTimeoutSeconds    = 300
	defaultCharmcraftBinary  = "charmcraft"
	defaultMinVersion        = "3.3.0"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:     defaultCacheDir(),
			TrackingFile: defaultTrackingFile,
		},
		Hub: Hub{
			RegistryURL: defaultRegistryURL,
			APIURL:      defaultAPIURL,
			Repository:  defaultHubRepository,
			IssueURL:    defaultIssueURL,
		},
		Download: Download{
			Concurrency:       defaultConcurrency,
			RetryAttempts:     defaultRetryAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			TimeoutSeconds:    defaultTimeoutSeconds,
		},
		Charmcraft: Charmcraft{
			Binary:     defaultCharmcraftBinary,
			MinVersion: defaultMinVersion,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
