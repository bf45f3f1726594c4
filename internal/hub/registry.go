package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/services"
)

// Fetcher retrieves a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Registry loads the ordered list of build records published by the hub.
type Registry struct {
	url     string
	fetcher Fetcher
	logger  *slog.Logger
}

// NewRegistry builds a registry client for the document at url.
func NewRegistry(url string, fetcher Fetcher, logger *slog.Logger) *Registry {
	return &Registry{
		url:     url,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "registry"),
	}
}

// Load fetches and parses the registry. Record order is preserved exactly;
// it is the merge precedence. Any failure is services.ErrRegistryUnavailable.
func (r *Registry) Load(ctx context.Context) ([]BuildRecord, error) {
	data, err := r.fetcher.Fetch(ctx, r.url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrRegistryUnavailable, "registry", "fetch", r.url, err)
	}
	records, err := ParseRegistry(data)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "registry", "parse", r.url, err)
	}
	r.logger.Debug("registry loaded", logging.Int("records", len(records)))
	return records, nil
}

type registryEntry struct {
	Repository string `json:"repository" yaml:"repository"`
	Path       string `json:"path" yaml:"path"`
	Ref        string `json:"ref" yaml:"ref"`
	Release    string `json:"release" yaml:"release"`
}

// ParseRegistry decodes a JSON or YAML list of {repository, path, ref, release}.
// A missing release is derived with ReleaseTag from the repository as written. JSON documents go through
// encoding/json since yaml.v3 rejects tab indentation that JSON allows.
func ParseRegistry(data []byte) ([]BuildRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty registry document")
	}
	var entries []registryEntry
	if trimmed := bytes.TrimSpace(data); trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode registry: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	records := make([]BuildRecord, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.Repository) == "" || strings.TrimSpace(entry.Ref) == "" {
			return nil, fmt.Errorf("registry entry %d: repository and ref are required", i)
		}
		id, err := charm.NewIdentity(entry.Repository, entry.Path)
		if err != nil {
			return nil, fmt.Errorf("registry entry %d: %w", i, err)
		}
		ref := strings.TrimSpace(entry.Ref)
		release := strings.TrimSpace(entry.Release)
		if release == "" {
			repo, err := charm.ParseRepository(entry.Repository)
			if err != nil {
				return nil, fmt.Errorf("registry entry %d: %w", i, err)
			}
			release = releaseTag(repo, id.Path, ref)
		}
		records = append(records, BuildRecord{Identity: id, Ref: ref, Release: release})
	}
	return records, nil
}
