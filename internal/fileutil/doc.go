// Package fileutil holds the file primitives behind atomic wheel placement:
// unique temporary names, commit by fsync and rename, and SHA-256 hashing.
package fileutil
