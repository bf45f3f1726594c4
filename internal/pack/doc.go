// Package pack orchestrates `ccc pack`.
//
// A run moves through init, config_parsed, registry_loaded, cache_resolved,
// materialized, packing and finally done or failed. Any stage error jumps
// straight to failed and charmcraft is not started. A charm the hub does not
// know is not an error: the cache stays empty and charmcraft builds from
// source. Collaborators are interfaces so the flow can be driven with fakes.
package pack
