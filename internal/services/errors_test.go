package services_test

import (
	"errors"
	"strings"
	"testing"

	"charmcraftcache/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrArtifactFetchFailed, "materialize", "download", "a.whl", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrArtifactFetchFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"materialize", "download", "a.whl"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrUnsupportedSyntax, "", "", "", nil)
	if !errors.Is(err, services.ErrUnsupportedSyntax) {
		t.Fatalf("expected marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no cache", services.Wrap(services.ErrNoCacheFound, "resolve", "", "", nil), false},
		{"release missing", services.Wrap(services.ErrReleaseNotFound, "resolve", "", "", nil), false},
		{"registry", services.Wrap(services.ErrRegistryUnavailable, "registry", "", "", nil), true},
		{"fetch", services.Wrap(services.ErrArtifactFetchFailed, "materialize", "", "", nil), true},
		{"syntax", services.Wrap(services.ErrUnsupportedSyntax, "config", "", "", nil), true},
		{"plain", errors.New("x"), true},
	}
	for _, tc := range cases {
		if got := services.IsFatal(tc.err); got != tc.want {
			t.Fatalf("%s: IsFatal = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHintForKnownMarkers(t *testing.T) {
	if services.Hint(services.ErrUnsupportedSyntax) == "" {
		t.Fatal("expected hint for unsupported syntax")
	}
	if services.Hint(errors.New("other")) != "" {
		t.Fatal("expected no hint for unclassified error")
	}
}
