package materialize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/juju/retry"

	"charmcraftcache/internal/fileutil"
	"charmcraftcache/internal/github"
	"charmcraftcache/internal/hub"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/store"
)

// SizeMismatchError reports a body shorter or longer than the published size.
type SizeMismatchError struct {
	Want, Got int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %d bytes, received %d", e.Want, e.Got)
}

// DigestMismatchError reports content that does not hash to the published digest.
type DigestMismatchError struct {
	Want, Got string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("sha256 mismatch: expected %s, received %s", e.Want, e.Got)
}

// fetch downloads artifact to target with retries and returns the bytes written.
func (m *Materializer) fetch(ctx context.Context, target string, artifact hub.Artifact, bar *progress) (int64, error) {
	logger := logging.WithContext(ctx, m.logger)
	var written int64
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			n, err := m.download(ctx, target, artifact, bar)
			written = n
			return err
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || !retryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
			logger.Debug("download attempt failed",
				logging.String("wheel", artifact.Name),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
		},
		Attempts:    m.attempts,
		Delay:       m.delay,
		MaxDelay:    m.maxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       m.clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return written, nil
	case ctx.Err() != nil:
		return 0, ctx.Err()
	case retry.IsAttemptsExceeded(err) && lastErr != nil:
		return 0, fmt.Errorf("failed after %d attempts: %w", m.attempts, lastErr)
	default:
		return 0, err
	}
}

// download runs one attempt: stream to a unique temporary file next to
// target, verify, then commit. The temporary file never survives a failure.
func (m *Materializer) download(ctx context.Context, target string, artifact hub.Artifact, bar *progress) (int64, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	body, _, err := m.opener.OpenAsset(ctx, artifact.DownloadURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	f, err := os.OpenFile(fileutil.PartName(target), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	hasher := sha256.New()
	counted := bar.track()
	n, err := io.Copy(io.MultiWriter(f, hasher, counted), body)
	if err != nil {
		counted.rollback()
		return n, err
	}
	if artifact.Size > 0 && n != artifact.Size {
		counted.rollback()
		return n, &SizeMismatchError{Want: artifact.Size, Got: n}
	}
	sum := hex.EncodeToString(hasher.Sum(nil))
	if want, ok := artifact.SHA256(); ok && sum != want {
		counted.rollback()
		return n, &DigestMismatchError{Want: want, Got: sum}
	}

	committed = true
	if err := fileutil.CommitFile(f, target); err != nil {
		counted.rollback()
		return n, err
	}
	if m.ledger != nil {
		rec := store.ArtifactRecord{
			Path:    target,
			URL:     artifact.DownloadURL,
			Size:    n,
			SHA256:  sum,
			Release: artifact.Record.Release,
		}
		if err := m.ledger.RecordArtifact(ctx, rec); err != nil {
			m.logger.Debug("ledger update failed", logging.String("wheel", artifact.Name), logging.Error(err))
		}
	}
	return n, nil
}

// retryable separates transient failures (network, timeouts, 429/5xx,
// truncated bodies) from ones that repeat identically on every attempt.
func retryable(err error) bool {
	var apiErr *github.APIError
	var digestErr *DigestMismatchError
	switch {
	case errors.As(err, &apiErr):
		return github.IsTransient(err)
	case errors.As(err, &digestErr):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrExist):
		return false
	default:
		return true
	}
}
