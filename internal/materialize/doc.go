// Package materialize places resolved wheels in the shared cache directory
// charmcraft reads through CRAFT_SHARED_CACHE.
//
// Each charm identity owns <cache_dir>/charms/<key>, guarded by an flock on
// <cache_dir>/charms/<key>.lock. Wheels land in
// charmcraft-buildd-base-v7/wheels under that directory. A download streams
// to a uniquely named temporary file and is renamed into place only after its
// size and digest check out, so a wheel's final name never holds partial
// content. Files that already match are skipped without network I/O.
package materialize
