package hub_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/github"
	"charmcraftcache/internal/hub"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/services"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

type fakeReleases map[string]*github.Release

func (f fakeReleases) ReleaseByTag(_ context.Context, _ string, tag string) (*github.Release, error) {
	release, ok := f[tag]
	if !ok {
		return nil, &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return release, nil
}

func mustIdentity(t *testing.T, repo, path string) charm.Identity {
	t.Helper()
	id, err := charm.NewIdentity(repo, path)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	return id
}

func TestReleaseTag(t *testing.T) {
	id := mustIdentity(t, "canonical/mysql-router-k8s-operator", "charms/router")
	got := hub.ReleaseTag(id, "feature/x")
	want := "canonical_mysql-router-k8s-operator_ccchub1_charms_router_ccchub2_feature_x"
	if got != want {
		t.Fatalf("ReleaseTag = %q, want %q", got, want)
	}
}

func TestParseRegistryPreservesOrder(t *testing.T) {
	doc := []byte(`[
	{"repository": "canonical/a", "path": ".", "ref": "main", "release": "R1"},
	{"repository": "https://github.com/Canonical/B.git", "ref": "v2"},
	{"repository": "canonical/a", "path": ".", "ref": "old", "release": "R3"}
]`)
	records, err := hub.ParseRegistry(doc)
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Release != "R1" || records[2].Release != "R3" {
		t.Fatalf("order not preserved: %+v", records)
	}
	if records[1].Identity.Repository != "canonical/b" || records[1].Identity.Path != "." {
		t.Fatalf("unexpected identity: %+v", records[1].Identity)
	}
	if records[1].Release != "Canonical_B_ccchub1_._ccchub2_v2" {
		t.Fatalf("expected derived release, got %q", records[1].Release)
	}
}

func TestParseRegistryDerivedReleaseKeepsCase(t *testing.T) {
	doc := []byte(`[{"repository": "Canonical/MySQL-Operator", "ref": "Main"}]`)
	records, err := hub.ParseRegistry(doc)
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if want := "Canonical_MySQL-Operator_ccchub1_._ccchub2_Main"; records[0].Release != want {
		t.Fatalf("Release = %q, want %q", records[0].Release, want)
	}
	if records[0].Identity != mustIdentity(t, "canonical/mysql-operator", ".") {
		t.Fatalf("identity should compare case-insensitively: %+v", records[0].Identity)
	}
	if records[0].Ref != "Main" {
		t.Fatalf("Ref = %q, want Main", records[0].Ref)
	}
}

func TestParseRegistryYAML(t *testing.T) {
	doc := []byte("- repository: canonical/a\n  path: charms/x\n  ref: main\n")
	records, err := hub.ParseRegistry(doc)
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	if len(records) != 1 || records[0].Identity.Path != "charms/x" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestParseRegistryRejectsIncompleteEntries(t *testing.T) {
	cases := map[string]string{
		"missing ref":        `[{"repository": "canonical/a"}]`,
		"missing repository": `[{"ref": "main"}]`,
		"bad repository":     `[{"repository": "a", "ref": "main"}]`,
		"empty":              "  ",
		"not a list":         `{"repository": "canonical/a"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := hub.ParseRegistry([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRegistryLoadClassifiesFailures(t *testing.T) {
	ctx := context.Background()

	reg := hub.NewRegistry("https://hub.test/charms.json", fakeFetcher{err: errors.New("dial tcp: refused")}, logging.NewNop())
	if _, err := reg.Load(ctx); !errors.Is(err, services.ErrRegistryUnavailable) {
		t.Fatalf("fetch failure: expected ErrRegistryUnavailable, got %v", err)
	}

	reg = hub.NewRegistry("https://hub.test/charms.json", fakeFetcher{data: []byte(`[{"repository":`)}, logging.NewNop())
	if _, err := reg.Load(ctx); !errors.Is(err, services.ErrRegistryUnavailable) {
		t.Fatalf("parse failure: expected ErrRegistryUnavailable, got %v", err)
	}

	reg = hub.NewRegistry("https://hub.test/charms.json", fakeFetcher{data: []byte(`[{"repository":"o/r","ref":"main"}]`)}, logging.NewNop())
	records, err := reg.Load(ctx)
	if err != nil || len(records) != 1 {
		t.Fatalf("Load: records=%v err=%v", records, err)
	}
}

func TestAssetIndex(t *testing.T) {
	id := mustIdentity(t, "o/r", ".")
	releases := fakeReleases{
		"R1": {TagName: "R1", Assets: []github.Asset{
			{Name: "b.whl", Size: 2, BrowserDownloadURL: "https://dl/R1/b.whl", Digest: "sha256:ABCD"},
			{Name: "a.whl", Size: 1, BrowserDownloadURL: "https://dl/R1/a.whl"},
		}},
		"empty": {TagName: "empty"},
	}
	index := hub.NewAssetIndex("canonical/charmcraftcache-hub", releases)
	ctx := context.Background()

	record := hub.BuildRecord{Identity: id, Ref: "main", Release: "R1"}
	artifacts, err := index.Assets(ctx, record)
	if err != nil {
		t.Fatalf("Assets: %v", err)
	}
	if len(artifacts) != 2 || artifacts[0].Name != "b.whl" || artifacts[1].Name != "a.whl" {
		t.Fatalf("expected API order, got %+v", artifacts)
	}
	if artifacts[0].Record != record {
		t.Fatalf("artifact lost its record: %+v", artifacts[0].Record)
	}
	if sum, ok := artifacts[0].SHA256(); !ok || sum != "abcd" {
		t.Fatalf("SHA256 = %q, %v", sum, ok)
	}
	if _, ok := artifacts[1].SHA256(); ok {
		t.Fatal("expected no digest")
	}

	artifacts, err = index.Assets(ctx, hub.BuildRecord{Identity: id, Ref: "x", Release: "empty"})
	if err != nil || len(artifacts) != 0 {
		t.Fatalf("empty release: artifacts=%v err=%v", artifacts, err)
	}

	_, err = index.Assets(ctx, hub.BuildRecord{Identity: id, Ref: "gone", Release: "missing"})
	if !errors.Is(err, services.ErrReleaseNotFound) {
		t.Fatalf("expected ErrReleaseNotFound, got %v", err)
	}
	if services.IsFatal(err) {
		t.Fatal("a missing release must not be fatal")
	}
}
