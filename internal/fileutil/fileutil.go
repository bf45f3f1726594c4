package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// partMarker separates a target filename from the random suffix of its
// in-progress download.
const partMarker = ".part-"

// SHA256File streams path through SHA-256 and returns the hex digest and the
// number of bytes read.
func SHA256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return "", n, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// PartName returns a unique temporary name next to target. Files with this
// name never hold complete content.
func PartName(target string) string {
	return target + partMarker + uuid.NewString()
}

// IsPartName reports whether name was produced by PartName.
func IsPartName(name string) bool {
	return strings.Contains(filepath.Base(name), partMarker)
}

// RemoveStaleParts deletes leftover temporary files in dir from interrupted
// runs and returns how many were removed.
func RemoveStaleParts(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsPartName(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// CommitFile flushes f, closes it, and renames it to target. The parent
// directory is synced so the rename survives a crash. f is removed when any
// step fails.
func CommitFile(f *os.File, target string) (err error) {
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return err
	}
	return SyncDir(filepath.Dir(target))
}

// SyncDir fsyncs a directory.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
