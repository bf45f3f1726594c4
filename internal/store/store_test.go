package store_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"charmcraftcache/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestResponseRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if _, ok, err := st.Response(ctx, "https://example.test/charms.json"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := st.SaveResponse(ctx, "https://example.test/charms.json", `"v1"`, []byte(`[]`)); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	if err := st.SaveResponse(ctx, "https://example.test/charms.json", `"v2"`, []byte(`[{}]`)); err != nil {
		t.Fatalf("SaveResponse overwrite: %v", err)
	}
	resp, ok, err := st.Response(ctx, "https://example.test/charms.json")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if resp.ETag != `"v2"` || string(resp.Body) != `[{}]` {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.FetchedAt.IsZero() {
		t.Fatal("expected fetched_at")
	}
}

func TestSaveResponseWithoutETagIsSkipped(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	if err := st.SaveResponse(ctx, "https://example.test/x", "", []byte("body")); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	if _, ok, _ := st.Response(ctx, "https://example.test/x"); ok {
		t.Fatal("responses without an ETag should not be cached")
	}
}

func TestArtifactLedger(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	records := []store.ArtifactRecord{
		{Path: "/cache/charms/a:./wheels/x.whl", URL: "https://dl/x", Size: 10, SHA256: "aa", Release: "R1"},
		{Path: "/cache/charms/a:./wheels/y.whl", URL: "https://dl/y", Size: 20, SHA256: "bb", Release: "R1"},
		{Path: "/cache/charms/b:./wheels/z.whl", URL: "https://dl/z", Size: 30, SHA256: "cc", Release: "R2"},
	}
	for _, rec := range records {
		if err := st.RecordArtifact(ctx, rec); err != nil {
			t.Fatalf("RecordArtifact: %v", err)
		}
	}

	got, ok, err := st.Artifact(ctx, records[1].Path)
	if err != nil || !ok {
		t.Fatalf("Artifact: ok=%v err=%v", ok, err)
	}
	if got.URL != "https://dl/y" || got.Size != 20 || got.SHA256 != "bb" || got.Release != "R1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	listed, err := st.Artifacts(ctx, "/cache/charms/a:")
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	if len(listed) != 2 || listed[0].Path != records[0].Path {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	if err := st.ForgetArtifact(ctx, "/cache/charms/a:./wheels/x"); err != nil {
		t.Fatalf("ForgetArtifact: %v", err)
	}
	if _, ok, _ := st.Artifact(ctx, records[0].Path); !ok {
		t.Fatal("ForgetArtifact must match the whole path")
	}
	if err := st.ForgetArtifact(ctx, records[1].Path); err != nil {
		t.Fatalf("ForgetArtifact: %v", err)
	}
	if _, ok, _ := st.Artifact(ctx, records[1].Path); ok {
		t.Fatal("expected y.whl to be forgotten")
	}

	if err := st.ForgetArtifacts(ctx, "/cache/charms/a:"); err != nil {
		t.Fatalf("ForgetArtifacts: %v", err)
	}
	if _, ok, _ := st.Artifact(ctx, records[0].Path); ok {
		t.Fatal("expected record to be forgotten")
	}
	if _, ok, _ := st.Artifact(ctx, records[2].Path); !ok {
		t.Fatal("unrelated record should remain")
	}
}

func TestMeta(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	if _, ok, err := st.Meta(ctx, "version"); err != nil || ok {
		t.Fatalf("expected missing meta, ok=%v err=%v", ok, err)
	}
	if err := st.SetMeta(ctx, "version", "1.0.0"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := st.SetMeta(ctx, "version", "1.1.0"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	value, ok, err := st.Meta(ctx, "version")
	if err != nil || !ok || value != "1.1.0" {
		t.Fatalf("Meta = %q ok=%v err=%v", value, ok, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = st.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := store.Open(path); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
