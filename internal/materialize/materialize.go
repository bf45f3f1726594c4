package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/fileutil"
	"charmcraftcache/internal/hub"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/preflight"
	"charmcraftcache/internal/services"
	"charmcraftcache/internal/store"
)

// BuildBaseDir is the charmcraft build base whose wheel cache ccc fills.
const BuildBaseDir = "charmcraft-buildd-base-v7"

const (
	defaultConcurrency = 4
	defaultAttempts    = 3
	defaultDelay       = time.Second
	defaultMaxDelay    = 10 * time.Second
	lockRetryDelay     = 250 * time.Millisecond
)

// AssetOpener streams a release asset.
type AssetOpener interface {
	OpenAsset(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Ledger remembers which download produced each file in a cache directory.
type Ledger interface {
	Artifact(ctx context.Context, path string) (store.ArtifactRecord, bool, error)
	RecordArtifact(ctx context.Context, rec store.ArtifactRecord) error
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithConcurrency bounds the number of parallel downloads.
func WithConcurrency(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithRetry sets the attempts per download and the initial backoff delay,
// which doubles up to maxDelay.
func WithRetry(attempts int, delay, maxDelay time.Duration) Option {
	return func(m *Materializer) {
		if attempts > 0 {
			m.attempts = attempts
		}
		if delay > 0 {
			m.delay = delay
		}
		if maxDelay > 0 {
			m.maxDelay = maxDelay
		}
	}
}

// WithTimeout bounds each download attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Materializer) {
		m.timeout = timeout
	}
}

// WithLedger records completed downloads and enables the ledger skip rule.
func WithLedger(ledger Ledger) Option {
	return func(m *Materializer) {
		m.ledger = ledger
	}
}

// WithClock sets the clock driving retry backoff.
func WithClock(c clock.Clock) Option {
	return func(m *Materializer) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) {
		m.logger = logger
	}
}

// WithProgress renders a byte progress bar to w. A nil writer disables it.
func WithProgress(w io.Writer) Option {
	return func(m *Materializer) {
		m.progress = w
	}
}

// WithFreeSpace replaces the free-space probe used before downloading.
func WithFreeSpace(fn func(path string) (uint64, error)) Option {
	return func(m *Materializer) {
		m.freeSpace = fn
	}
}

// Materializer places resolved wheels into per-charm shared cache directories.
type Materializer struct {
	root        string
	opener      AssetOpener
	ledger      Ledger
	concurrency int
	attempts    int
	delay       time.Duration
	maxDelay    time.Duration
	timeout     time.Duration
	clock       clock.Clock
	logger      *slog.Logger
	progress    io.Writer
	freeSpace   func(string) (uint64, error)
}

// New builds a materializer rooted at charmsDir (<cache_dir>/charms).
func New(charmsDir string, opener AssetOpener, opts ...Option) *Materializer {
	m := &Materializer{
		root:        charmsDir,
		opener:      opener,
		concurrency: defaultConcurrency,
		attempts:    defaultAttempts,
		delay:       defaultDelay,
		maxDelay:    defaultMaxDelay,
		clock:       clock.WallClock,
		freeSpace:   preflight.FreeBytes,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "materialize")
	return m
}

// CacheDir returns the shared cache directory for identity, the value handed
// to charmcraft as CRAFT_SHARED_CACHE.
func (m *Materializer) CacheDir(id charm.Identity) string {
	return filepath.Join(m.root, id.Key())
}

// WheelsDir returns where charmcraft looks up pre-built wheels for identity.
func (m *Materializer) WheelsDir(id charm.Identity) string {
	return filepath.Join(m.CacheDir(id), BuildBaseDir, "wheels")
}

// Lock takes the exclusive lock on identity's cache directory, waiting for
// other ccc processes to release it. Call the returned func to unlock.
func (m *Materializer) Lock(ctx context.Context, id charm.Identity) (func() error, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	lock := flock.New(filepath.Join(m.root, id.Key()+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		m.logger.InfoContext(ctx, "waiting for another ccc process to release the cache",
			logging.String("lock_path", lock.Path()))
		ok, err = lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("acquire cache lock: %w", err)
		}
		if !ok {
			return nil, errors.New("acquire cache lock: lock not obtained")
		}
	}
	return lock.Unlock, nil
}

// Summary reports what a Materialize call did.
type Summary struct {
	Downloaded int
	Skipped    int
	Bytes      int64
}

// Materialize makes every artifact present under identity's wheels directory.
// Files already holding identical content are skipped without network I/O.
// Any download that still fails after retries cancels the rest and the call
// fails with services.ErrArtifactFetchFailed. On success, wheels that are not
// part of artifacts are removed. The caller holds the lock.
func (m *Materializer) Materialize(ctx context.Context, id charm.Identity, artifacts []hub.Artifact) (Summary, error) {
	var summary Summary
	logger := logging.WithContext(ctx, m.logger)
	dir := m.WheelsDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, services.Wrap(services.ErrArtifactFetchFailed, "materialize", "create cache directory", dir, err)
	}
	if removed, err := fileutil.RemoveStaleParts(dir); err != nil {
		logger.Debug("stale partial downloads not removed", logging.Error(err))
	} else if removed > 0 {
		logger.Debug("removed partial downloads from an interrupted run", logging.Int("count", removed))
	}

	var pending []hub.Artifact
	var need uint64
	for _, artifact := range artifacts {
		if !validName(artifact.Name) {
			return summary, services.Wrap(services.ErrArtifactFetchFailed, "materialize", "plan", fmt.Sprintf("unsafe asset name %q", artifact.Name), nil)
		}
		target := filepath.Join(dir, artifact.Name)
		if m.upToDate(ctx, target, artifact) {
			summary.Skipped++
			continue
		}
		pending = append(pending, artifact)
		if artifact.Size > 0 {
			need += uint64(artifact.Size)
		}
	}
	if len(pending) == 0 {
		logger.Info("wheel cache up to date", logging.Int("wheels", summary.Skipped))
		m.prune(ctx, logger, dir, artifacts)
		return summary, nil
	}
	if err := preflight.CheckFreeSpace(dir, need, m.freeSpace); err != nil {
		return summary, services.Wrap(services.ErrArtifactFetchFailed, "materialize", "preflight", "", err)
	}

	logger.Info("downloading wheels",
		logging.Int("wheels", len(pending)),
		logging.Int("cached", summary.Skipped),
		logging.Int64("total_bytes", int64(need)),
	)
	bar := newProgress(m.progress, int64(need), len(pending))
	sizes := make([]int64, len(pending))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(m.concurrency)
	for i, artifact := range pending {
		group.Go(func() error {
			n, err := m.fetch(gctx, filepath.Join(dir, artifact.Name), artifact, bar)
			if err != nil {
				return fmt.Errorf("%s: %w", artifact.Name, err)
			}
			sizes[i] = n
			return nil
		})
	}
	err := group.Wait()
	bar.finish()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		return summary, services.Wrap(services.ErrArtifactFetchFailed, "materialize", "download", "", err)
	}
	for _, n := range sizes {
		summary.Bytes += n
	}
	summary.Downloaded = len(pending)
	logger.Info("wheels downloaded",
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("cached", summary.Skipped),
		logging.Int64("size_bytes", summary.Bytes),
	)
	m.prune(ctx, logger, dir, artifacts)
	return summary, nil
}

// prune removes regular files in dir that are not named by artifacts, along
// with their ledger rows. Failures are logged; the resolved wheels are in place.
func (m *Materializer) prune(ctx context.Context, logger *slog.Logger, dir string, artifacts []hub.Artifact) {
	keep := make(map[string]struct{}, len(artifacts))
	for _, artifact := range artifacts {
		keep[artifact.Name] = struct{}{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("outdated wheels not checked", logging.Error(err))
		return
	}
	forget, _ := m.ledger.(pathForgetter)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if _, ok := keep[name]; ok || !entry.Type().IsRegular() || fileutil.IsPartName(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "outdated wheel not removed", "cache_prune_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.Impact("charmcraft may read an outdated wheel"),
				logging.Hint("run ccc clean"),
			)
			continue
		}
		removed++
		if forget != nil {
			if err := forget.ForgetArtifact(ctx, path); err != nil {
				logger.Debug("ledger entry not forgotten", logging.String("path", path), logging.Error(err))
			}
		}
	}
	if removed > 0 {
		logger.Info("removed outdated wheels", logging.Int("count", removed))
	}
}

// upToDate reports whether target already holds artifact's content: the size
// matches, and either the published digest matches or the ledger recorded
// this URL and this digest for the path.
func (m *Materializer) upToDate(ctx context.Context, target string, artifact hub.Artifact) bool {
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if artifact.Size > 0 && info.Size() != artifact.Size {
		return false
	}
	sum, _, err := fileutil.SHA256File(target)
	if err != nil {
		return false
	}
	if want, ok := artifact.SHA256(); ok {
		return sum == want
	}
	if m.ledger == nil {
		return false
	}
	rec, ok, err := m.ledger.Artifact(ctx, target)
	if err != nil || !ok {
		return false
	}
	return rec.URL == artifact.DownloadURL && rec.SHA256 == sum && rec.Size == info.Size()
}

type forgetter interface {
	ForgetArtifacts(ctx context.Context, prefix string) error
}

type pathForgetter interface {
	ForgetArtifact(ctx context.Context, path string) error
}

// Clean removes identity's cache directory and, when the ledger supports it,
// the ledger rows for files under it. The caller holds the lock.
func (m *Materializer) Clean(ctx context.Context, id charm.Identity) error {
	return m.removeCacheDir(ctx, m.CacheDir(id))
}

// Reset removes every charm cache directory under the root whose lock is free,
// taking that lock while removing. Lock files stay. Directories locked by
// another process are left alone and their keys returned.
func (m *Materializer) Reset(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", m.root, err)
	}
	var busy []string
	for _, entry := range entries {
		key := entry.Name()
		if strings.HasSuffix(key, ".lock") {
			continue
		}
		lock := flock.New(filepath.Join(m.root, key+".lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return busy, fmt.Errorf("acquire cache lock: %w", err)
		}
		if !ok {
			m.logger.DebugContext(ctx, "cache in use; not cleared", logging.String("key", key))
			busy = append(busy, key)
			continue
		}
		err = m.removeCacheDir(ctx, filepath.Join(m.root, key))
		if unlockErr := lock.Unlock(); err == nil && unlockErr != nil {
			err = fmt.Errorf("release cache lock: %w", unlockErr)
		}
		if err != nil {
			return busy, err
		}
	}
	return busy, nil
}

func (m *Materializer) removeCacheDir(ctx context.Context, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if f, ok := m.ledger.(forgetter); ok {
		if err := f.ForgetArtifacts(ctx, dir+string(filepath.Separator)); err != nil {
			return fmt.Errorf("forget ledger entries: %w", err)
		}
	}
	return nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name && !fileutil.IsPartName(name)
}
