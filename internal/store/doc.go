// Package store keeps ccc's local state in SQLite.
//
// It records HTTP validators (ETag plus body) so the registry and release
// lookups can use conditional requests, and a ledger of every wheel placed in
// a shared cache directory so re-runs can prove a file on disk is the one
// that was downloaded.
package store
