package main

import (
	"context"

	"charmcraftcache/internal/logging"
)

const versionMetaKey = "ccc_version"

// resetOnVersionChange empties the shared caches when ccc was upgraded or
// downgraded since the last run. Cache layout may differ between versions.
// Caches held by a running ccc are skipped and the stored version is left
// alone, so the next invocation finishes the reset.
func (s *session) resetOnVersionChange(ctx context.Context) error {
	previous, ok, err := s.store.Meta(ctx, versionMetaKey)
	if err != nil {
		return err
	}
	if ok && previous == version {
		return nil
	}
	if ok {
		logger := logging.WithContext(ctx, s.logger)
		logger.Info("ccc version changed; clearing shared caches",
			logging.String("previous", previous),
			logging.String("current", version),
		)
		busy, err := s.materializer.Reset(ctx)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			logging.WarnWithContext(logger, "shared caches in use were not cleared", "cache_reset_deferred",
				logging.Int("count", len(busy)),
				logging.Impact("those caches are cleared on a later run"),
				logging.Hint("wait for other ccc processes to finish"),
			)
			return nil
		}
	}
	return s.store.SetMeta(ctx, versionMetaKey, version)
}
