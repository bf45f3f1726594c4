package preflight

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	free := ""
	if bytes, err := FreeBytes(path); err == nil {
		free = ", " + humanize.IBytes(bytes) + " free"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok%s)", path, free)}
}

// FreeBytes reports the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// InsufficientSpaceError reports a download that would not fit on disk.
type InsufficientSpaceError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient free space in %s: need %s, have %s",
		e.Path, humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// CheckFreeSpace fails with *InsufficientSpaceError when fewer than required
// bytes are free at path. freeBytes defaults to FreeBytes.
func CheckFreeSpace(path string, required uint64, freeBytes func(string) (uint64, error)) error {
	if required == 0 {
		return nil
	}
	if freeBytes == nil {
		freeBytes = FreeBytes
	}
	available, err := freeBytes(path)
	if err != nil {
		return err
	}
	if available < required {
		return &InsufficientSpaceError{Path: path, Required: required, Available: available}
	}
	return nil
}
