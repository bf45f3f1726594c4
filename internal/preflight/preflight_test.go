package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"charmcraftcache/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "free") {
		t.Fatalf("expected free space in detail, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestFreeBytes(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if free == 0 {
		t.Fatal("expected some free space in the temp dir")
	}
	if _, err := FreeBytes(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	fixed := func(n uint64) func(string) (uint64, error) {
		return func(string) (uint64, error) { return n, nil }
	}
	if err := CheckFreeSpace("/cache", 10, fixed(10)); err != nil {
		t.Fatalf("exact fit should pass: %v", err)
	}
	err := CheckFreeSpace("/cache", 2048, fixed(1024))
	var space *InsufficientSpaceError
	if !errors.As(err, &space) {
		t.Fatalf("expected InsufficientSpaceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "need 2.0 KiB, have 1.0 KiB") {
		t.Fatalf("unexpected message %q", err)
	}
	if err := CheckFreeSpace("/cache", 0, func(string) (uint64, error) {
		return 0, errors.New("statfs must not run")
	}); err != nil {
		t.Fatalf("zero bytes should skip the check: %v", err)
	}
}

func TestRunAll(t *testing.T) {
	binDir := t.TempDir()
	charmcraft := filepath.Join(binDir, "charmcraft")
	if err := os.WriteFile(charmcraft, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.TrackingFile = filepath.Join(base, "config", "charms.toml")
	cfg.Paths.StateDB = filepath.Join(base, "cache", "state.db")
	cfg.Charmcraft.Binary = charmcraft
	cfg.Charm.Repository = "canonical/a"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %#v", results)
	}
	if !results[0].Passed || !results[1].Passed {
		t.Fatalf("expected cache dir and charmcraft to pass: %#v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}

	cfg.Charmcraft.Binary = filepath.Join(binDir, "missing")
	if failed := Failed(RunAll(context.Background(), &cfg)); len(failed) != 1 || failed[0].Name != "charmcraft" {
		t.Fatalf("expected charmcraft failure, got %#v", failed)
	}
}
