// Package github is a small GitHub REST client for release lookups and asset
// downloads.
//
// API requests carry the pinned API version header and an optional bearer
// token. GET requests use ETag validators persisted through a ResponseCache,
// and rate limit responses become an *APIError that names the reset time.
package github
