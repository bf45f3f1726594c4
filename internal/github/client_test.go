package github_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"charmcraftcache/internal/github"
	"charmcraftcache/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestReleaseByTagSendsAPIHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/canonical/charmcraftcache-hub/releases/tags/a_ccchub1_._ccchub2_main" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("unexpected accept %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != "2022-11-28" {
			t.Errorf("unexpected api version %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		_, _ = io.WriteString(w, `{"tag_name":"a_ccchub1_._ccchub2_main","assets":[{"name":"a.whl","size":3,"browser_download_url":"https://dl/a.whl","digest":"sha256:abc"}]}`)
	}))
	defer server.Close()

	client, err := github.New(server.URL, github.WithToken("secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	release, err := client.ReleaseByTag(context.Background(), "canonical/charmcraftcache-hub", "a_ccchub1_._ccchub2_main")
	if err != nil {
		t.Fatalf("ReleaseByTag: %v", err)
	}
	if len(release.Assets) != 1 || release.Assets[0].Name != "a.whl" || release.Assets[0].Digest != "sha256:abc" {
		t.Fatalf("unexpected release: %+v", release)
	}
}

func TestReleaseByTagNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	}))
	defer server.Close()

	client, err := github.New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.ReleaseByTag(context.Background(), "o/r", "missing")
	if !github.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if github.IsTransient(err) {
		t.Fatal("404 must not be transient")
	}
}

func TestFetchUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, `[{"repository":"o/r","path":".","ref":"main"}]`)
	}))
	defer server.Close()

	st := newStore(t)
	client, err := github.New(server.URL, github.WithCache(st))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first, err := client.Fetch(context.Background(), server.URL+"/charms.json")
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	second, err := client.Fetch(context.Background(), server.URL+"/charms.json")
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("cached body mismatch: %q vs %q", first, second)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected two requests, got %d", hits.Load())
	}
}

func TestRateLimitErrorNamesResetAndToken(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	reset := now.Add(90 * time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"API rate limit exceeded"}`)
	}))
	defer server.Close()

	client, err := github.New(server.URL, github.WithClock(testclock.NewClock(now)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.ReleaseByTag(context.Background(), "o/r", "tag")
	if !github.IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "retry in 1m30s") || !strings.Contains(msg, "GH_TOKEN") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := github.New(server.URL, github.WithToken("t"), github.WithClock(testclock.NewClock(now)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Fetch(context.Background(), server.URL+"/x")
	if !github.IsRateLimited(err) || !github.IsTransient(err) {
		t.Fatalf("expected transient rate limit, got %v", err)
	}
	if strings.Contains(err.Error(), "GH_TOKEN") {
		t.Fatalf("authenticated requests should not suggest GH_TOKEN: %q", err)
	}
}

func TestOpenAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.whl" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/flaky.whl" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "wheel-bytes")
	}))
	defer server.Close()

	client, err := github.New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	body, size, err := client.OpenAsset(context.Background(), server.URL+"/a.whl")
	if err != nil {
		t.Fatalf("OpenAsset: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if string(data) != "wheel-bytes" || size != int64(len("wheel-bytes")) {
		t.Fatalf("unexpected body %q size %d", data, size)
	}

	if _, _, err := client.OpenAsset(context.Background(), server.URL+"/missing.whl"); !github.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := client.OpenAsset(context.Background(), server.URL+"/flaky.whl"); !github.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
