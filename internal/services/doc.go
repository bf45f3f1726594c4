// Package services defines shared utilities consumed by the pack stages and
// their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp stage names, charm identities, platforms, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     fatal (abort before charmcraft runs) or degradable (fall back to a
//     from-source build).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pack workflow.
package services
