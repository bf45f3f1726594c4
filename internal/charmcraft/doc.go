// Package charmcraft runs the charmcraft CLI: the version gate, `pack` per
// platform with CRAFT_SHARED_CACHE set, and `clean`.
//
// Cancelling the context sends SIGINT to charmcraft and waits a bounded time
// for it to exit. charmcraft's exit code is returned unchanged.
package charmcraft
