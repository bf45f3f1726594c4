package testsupport

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes data to path, creating parent directories, and returns
// the SHA-256 hex digest of data.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return SHA256(data)
}

// SHA256 returns the hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest returns data's digest in GitHub's "sha256:<hex>" asset form.
func Digest(data []byte) string {
	return "sha256:" + SHA256(data)
}

// WheelBytes returns deterministic content of the requested size for name.
func WheelBytes(name string, size int) []byte {
	if size <= 0 {
		size = 1
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = name[i%len(name)]
	}
	return data
}
