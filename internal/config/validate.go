package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/mod/semver"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateHub(); err != nil {
		return err
	}
	if err := c.validateCharmcraft(); err != nil {
		return err
	}
	if err := c.validateCharm(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateHub() error {
	if err := validateURL("hub.registry_url", c.Hub.RegistryURL); err != nil {
		return err
	}
	if err := validateURL("hub.api_url", c.Hub.APIURL); err != nil {
		return err
	}
	if err := validateURL("hub.issue_url", c.Hub.IssueURL); err != nil {
		return err
	}
	if parts := strings.Split(c.Hub.Repository, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("hub.repository must be in owner/name form, got %q", c.Hub.Repository)
	}
	return nil
}

func (c *Config) validateCharmcraft() error {
	if !semver.IsValid("v" + c.Charmcraft.MinVersion) {
		return fmt.Errorf("charmcraft.min_version must be a semantic version, got %q", c.Charmcraft.MinVersion)
	}
	return nil
}

func (c *Config) validateCharm() error {
	if c.Charm.Repository == "" {
		if c.Charm.Path != "" {
			return errors.New("charm.path requires charm.repository")
		}
		return nil
	}
	if strings.HasPrefix(c.Charm.Path, "../") || c.Charm.Path == ".." || strings.HasPrefix(c.Charm.Path, "/") {
		return fmt.Errorf("charm.path must be relative to the repository root, got %q", c.Charm.Path)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", field, value)
	}
	return nil
}
