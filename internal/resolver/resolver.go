package resolver

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/hub"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/services"
)

const defaultConcurrency = 4

// AssetLister lists the artifacts published for one build record.
type AssetLister interface {
	Assets(ctx context.Context, record hub.BuildRecord) ([]hub.Artifact, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds the number of in-flight asset listings.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger used for skipped-record warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver builds the resolved cache set for a charm identity.
type Resolver struct {
	assets      AssetLister
	concurrency int
	logger      *slog.Logger
}

// New constructs a Resolver over the given asset lister.
func New(assets AssetLister, opts ...Option) *Resolver {
	r := &Resolver{assets: assets, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "resolver")
	return r
}

// Skip records a build record whose listing failed.
type Skip struct {
	Record hub.BuildRecord
	Err    error
}

// Result is the resolved cache set for one identity.
type Result struct {
	Identity charm.Identity
	// Set maps filename to the artifact from the earliest record listing it.
	Set map[string]hub.Artifact
	// Matched holds the records whose listing succeeded, in registry order.
	Matched []hub.BuildRecord
	Skipped []Skip
}

// Names returns the filenames in the set, sorted.
func (r Result) Names() []string {
	names := make([]string, 0, len(r.Set))
	for name := range r.Set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Artifacts returns the set's artifacts sorted by filename.
func (r Result) Artifacts() []hub.Artifact {
	names := r.Names()
	artifacts := make([]hub.Artifact, 0, len(names))
	for _, name := range names {
		artifacts = append(artifacts, r.Set[name])
	}
	return artifacts
}

// TotalSize sums the published sizes of every artifact in the set.
func (r Result) TotalSize() int64 {
	var total int64
	for _, artifact := range r.Set {
		total += artifact.Size
	}
	return total
}

// Filter returns the records for identity, keeping registry order.
func Filter(identity charm.Identity, records []hub.BuildRecord) []hub.BuildRecord {
	var matched []hub.BuildRecord
	for _, record := range records {
		if record.Identity == identity {
			matched = append(matched, record)
		}
	}
	return matched
}

// SelectIdentity picks the first candidate that has build records in the
// registry. With no match it returns the first candidate so the caller can
// still report ErrNoCacheFound against the most likely identity.
func SelectIdentity(candidates []charm.Identity, records []hub.BuildRecord) (charm.Identity, bool) {
	for _, candidate := range candidates {
		if len(Filter(candidate, records)) > 0 {
			return candidate, true
		}
	}
	if len(candidates) == 0 {
		return charm.Identity{}, false
	}
	return candidates[0], false
}

type listing struct {
	artifacts []hub.Artifact
	err       error
}

// Resolve lists the assets of every record matching identity and merges them.
// Records are looked up concurrently; a failed lookup is logged and skipped.
// No matching record yields an empty set and services.ErrNoCacheFound.
// Cancelling ctx aborts with the context error.
func (r *Resolver) Resolve(ctx context.Context, identity charm.Identity, records []hub.BuildRecord) (Result, error) {
	result := Result{Identity: identity, Set: map[string]hub.Artifact{}}
	matched := Filter(identity, records)
	if len(matched) == 0 {
		return result, services.Wrap(services.ErrNoCacheFound, "resolve", identity.String(), "no build records in hub registry", nil)
	}

	listings, err := r.fanOut(ctx, matched)
	if err != nil {
		return Result{Identity: identity, Set: map[string]hub.Artifact{}}, err
	}

	logger := logging.WithContext(ctx, r.logger)
	for i, record := range matched {
		l := listings[i]
		if l.err != nil {
			result.Skipped = append(result.Skipped, Skip{Record: record, Err: l.err})
			attrs := []logging.Attr{
				logging.String("release", record.Release),
				logging.String("ref", record.Ref),
				logging.Error(l.err),
				logging.Impact("wheels from this build are not used"),
			}
			if hint := services.Hint(l.err); hint != "" {
				attrs = append(attrs, logging.Hint(hint))
			}
			logging.WarnWithContext(logger, "build record skipped", "release_lookup_failed", attrs...)
			continue
		}
		result.Matched = append(result.Matched, record)
		for _, artifact := range l.artifacts {
			if _, seen := result.Set[artifact.Name]; !seen {
				result.Set[artifact.Name] = artifact
			}
		}
	}
	logger.Debug("cache resolved",
		logging.Int("records", len(matched)),
		logging.Int("skipped", len(result.Skipped)),
		logging.Int("artifacts", len(result.Set)),
		logging.Int64("total_bytes", result.TotalSize()),
	)
	return result, nil
}

// fanOut runs one lookup per record, bounded by the resolver's concurrency.
// Each listing lands at its record's index.
func (r *Resolver) fanOut(ctx context.Context, records []hub.BuildRecord) ([]listing, error) {
	listings := make([]listing, len(records))
	sem := semaphore.NewWeighted(int64(r.concurrency))
	var wg sync.WaitGroup
	var acquireErr error
	for i, record := range records {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			artifacts, err := r.assets.Assets(ctx, record)
			listings[i] = listing{artifacts: artifacts, err: err}
		}()
	}
	wg.Wait()
	if acquireErr != nil {
		return nil, acquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}
