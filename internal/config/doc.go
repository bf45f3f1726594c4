// Package config loads, normalizes, and validates ccc configuration data.
//
// It supplies defaults for the shared wheel cache, the hub registry, and the
// GitHub API, expands user paths (including tilde shortcuts), reads TOML
// files, and honours environment fallbacks such as GH_TOKEN and CCC_CACHE_DIR.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
