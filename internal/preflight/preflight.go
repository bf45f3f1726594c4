package preflight

import (
	"context"

	"charmcraftcache/internal/config"
	"charmcraftcache/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results never fail a run.
	Optional bool
}

// RunAll executes the checks ccc pack depends on: cache directory access and
// the external binaries. The cache directory is created first when missing.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if err := cfg.EnsureDirectories(); err != nil {
		results = append(results, Result{Name: "Cache directory", Detail: err.Error()})
	} else {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			result.Detail = status.Path
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
