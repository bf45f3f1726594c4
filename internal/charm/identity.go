package charm

import (
	"fmt"
	"path"
	"strings"
)

// Identity names a charm independently of its version: a GitHub repository
// and the directory holding charmcraft.yaml inside it.
type Identity struct {
	// Repository is owner/name, lower-cased.
	Repository string
	// Path is slash separated and cleaned; "." means the repository root.
	Path string
}

// NewIdentity normalizes repository and path. repository may be a GitHub URL
// (https or ssh) or an owner/name pair.
// Identities compare case-insensitively on the repository.
func NewIdentity(repository, charmPath string) (Identity, error) {
	repo, err := ParseRepository(repository)
	if err != nil {
		return Identity{}, err
	}
	cleaned, err := cleanPath(charmPath)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Repository: strings.ToLower(repo), Path: cleaned}, nil
}

// ParseRepository returns owner/name from a GitHub URL or an owner/name pair,
// keeping the case it was written in.
func ParseRepository(repository string) (string, error) {
	if repo, ok := RepositoryFromURL(repository); ok {
		return repo, nil
	}
	trimmed := strings.Trim(strings.TrimSuffix(strings.TrimSpace(repository), ".git"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("charm repository %q is not a GitHub owner/name", repository)
	}
	return trimmed, nil
}

// Key returns a filesystem-safe identifier: owner_name:path with every slash
// replaced by an underscore.
func (id Identity) Key() string {
	return strings.ReplaceAll(id.Repository, "/", "_") + ":" + strings.ReplaceAll(id.Path, "/", "_")
}

func (id Identity) String() string {
	if id.Path == "." {
		return id.Repository
	}
	return id.Repository + "/" + id.Path
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Repository == ""
}

// RepositoryFromURL extracts owner/name from a GitHub remote URL. It accepts
// https://github.com/owner/name(.git) and git@github.com:owner/name(.git).
func RepositoryFromURL(url string) (string, bool) {
	url = strings.TrimSpace(url)
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")
	for _, prefix := range []string{"git@github.com:", "https://github.com/", "ssh://git@github.com/"} {
		if !strings.HasPrefix(url, prefix) {
			continue
		}
		repo := strings.TrimPrefix(url, prefix)
		parts := strings.Split(repo, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", false
		}
		return repo, true
	}
	return "", false
}

func cleanPath(charmPath string) (string, error) {
	charmPath = strings.TrimSpace(strings.ReplaceAll(charmPath, "\\", "/"))
	if charmPath == "" {
		return ".", nil
	}
	cleaned := path.Clean(charmPath)
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("charm path %q must be relative to the repository root", charmPath)
	}
	return cleaned, nil
}
