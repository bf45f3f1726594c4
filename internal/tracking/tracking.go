package tracking

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/fileutil"
)

// Entry is one charm requested for pre-built wheels.
type Entry struct {
	Repository string    `toml:"repository"`
	Path       string    `toml:"path"`
	Ref        string    `toml:"ref,omitempty"`
	Platforms  []string  `toml:"platforms"`
	AddedAt    time.Time `toml:"added_at"`
	UpdatedAt  time.Time `toml:"updated_at"`
}

// Identity returns the entry's charm identity.
func (e Entry) Identity() (charm.Identity, error) {
	return charm.NewIdentity(e.Repository, e.Path)
}

type document struct {
	Charms []Entry `toml:"charm"`
}

// List is the on-disk tracking list.
type List struct {
	path    string
	entries []Entry
	now     func() time.Time
}

// Load reads the list at path. A missing file is an empty list.
func Load(path string) (*List, error) {
	list := &List{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return list, nil
		}
		return nil, fmt.Errorf("read tracking list: %w", err)
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tracking list %s: %w", path, err)
	}
	list.entries = doc.Charms
	return list, nil
}

// Path returns the file backing the list.
func (l *List) Path() string {
	return l.path
}

// Entries returns a copy of the entries in insertion order.
func (l *List) Entries() []Entry {
	return slices.Clone(l.entries)
}

// Add records id at ref for platforms. Adding an identical entry changes
// nothing; new platforms are merged into an existing entry and a different
// ref replaces the old one. It reports whether the list changed.
func (l *List) Add(id charm.Identity, ref string, platforms []string) bool {
	for i := range l.entries {
		existing := &l.entries[i]
		current, err := existing.Identity()
		if err != nil || current != id {
			continue
		}
		changed := false
		for _, p := range platforms {
			if !slices.Contains(existing.Platforms, p) {
				existing.Platforms = append(existing.Platforms, p)
				changed = true
			}
		}
		if ref != "" && existing.Ref != ref {
			existing.Ref = ref
			changed = true
		}
		if changed {
			existing.UpdatedAt = l.now().UTC()
		}
		return changed
	}
	now := l.now().UTC()
	l.entries = append(l.entries, Entry{
		Repository: id.Repository,
		Path:       id.Path,
		Ref:        ref,
		Platforms:  slices.Clone(platforms),
		AddedAt:    now,
		UpdatedAt:  now,
	})
	return true
}

// Save writes the list atomically.
func (l *List) Save() error {
	data, err := toml.Marshal(document{Charms: l.entries})
	if err != nil {
		return fmt.Errorf("encode tracking list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create tracking list directory: %w", err)
	}
	f, err := os.OpenFile(fileutil.PartName(l.path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write tracking list: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("write tracking list: %w", err)
	}
	if err := fileutil.CommitFile(f, l.path); err != nil {
		return fmt.Errorf("write tracking list: %w", err)
	}
	return nil
}
