package testsupport

import (
	"testing"

	"charmcraftcache/internal/config"
	"charmcraftcache/internal/store"
)

// MustOpenStore opens the state store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.Paths.StateDB)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
