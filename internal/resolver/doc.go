// Package resolver merges the wheel listings of every hub build record that
// matches a charm into one set keyed by filename.
//
// Listings are fetched concurrently but folded in registry order, so the
// first record that lists a filename always supplies it no matter which
// lookup finished first.
package resolver
