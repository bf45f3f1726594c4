package platforms

import (
	"errors"
	"strings"
	"testing"

	"charmcraftcache/internal/services"
)

func TestParseShorthandPreservesOrderAndDuplicates(t *testing.T) {
	doc, err := Parse([]byte(`
name: widget
type: charm
charm-strict-dependencies: true
platforms:
  ubuntu@22.04:arm64:
  ubuntu@22.04:amd64: ~
  ubuntu@24.04:amd64: null
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"ubuntu@22.04:arm64", "ubuntu@22.04:amd64", "ubuntu@24.04:amd64"}
	if len(doc.Platforms) != len(want) {
		t.Fatalf("got %d platforms, want %d", len(doc.Platforms), len(want))
	}
	for i, p := range doc.Platforms {
		if p.String() != want[i] {
			t.Fatalf("platform %d = %q, want %q", i, p, want[i])
		}
	}
	if !doc.StrictDependencies {
		t.Fatal("expected strict dependencies flag")
	}
}

func TestParsePlatformRecoversTriple(t *testing.T) {
	cases := map[string]Platform{
		"ubuntu@22.04:amd64":  {OS: "ubuntu", Release: "22.04", Architecture: "amd64"},
		"ubuntu@24.04:arm64":  {OS: "ubuntu", Release: "24.04", Architecture: "arm64"},
		"centos@7:s390x":      {OS: "centos", Release: "7", Architecture: "s390x"},
		"almalinux@9:ppc64el": {OS: "almalinux", Release: "9", Architecture: "ppc64el"},
	}
	for input, want := range cases {
		got, err := ParsePlatform(input)
		if err != nil {
			t.Fatalf("ParsePlatform(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParsePlatform(%q) = %+v, want %+v", input, got, want)
		}
		if got.String() != input {
			t.Fatalf("round trip %q -> %q", input, got.String())
		}
	}
}

func TestParseRejectsUnsupportedSyntax(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantKey string
	}{
		{"bases", "bases:\n  - name: ubuntu\n    channel: \"22.04\"\n", "bases"},
		{"base", "base: ubuntu@22.04\nplatforms:\n  amd64:\n", "base"},
		{"build-on build-for", "platforms:\n  jammy:\n    build-on: [ubuntu@22.04:amd64]\n    build-for: [ubuntu@22.04:amd64]\n", "jammy"},
		{"malformed key", "platforms:\n  amd64:\n", "amd64"},
		{"scalar value", "platforms:\n  ubuntu@22.04:amd64: yes\n", "ubuntu@22.04:amd64"},
		{"missing platforms", "name: widget\n", "platforms"},
		{"empty platforms", "platforms: {}\n", "platforms"},
		{"list platforms", "platforms:\n  - ubuntu@22.04:amd64\n", "platforms"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if !errors.Is(err, services.ErrUnsupportedSyntax) {
				t.Fatalf("expected ErrUnsupportedSyntax, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantKey) {
				t.Fatalf("expected error naming %q, got %v", tc.wantKey, err)
			}
		})
	}
}

func TestParsePlatformRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "ubuntu", "ubuntu@22.04", "@22.04:amd64", "ubuntu@:amd64", "ubuntu@22.04:", "ubuntu@22.04:amd64:x", "a@b@c:d", "ubuntu @22.04:amd64"} {
		if _, err := ParsePlatform(input); !errors.Is(err, services.ErrUnsupportedSyntax) {
			t.Fatalf("ParsePlatform(%q) expected ErrUnsupportedSyntax, got %v", input, err)
		}
	}
}

func TestSelectDefaultsToHostArchitecture(t *testing.T) {
	declared := mustPlatforms(t, "ubuntu@22.04:amd64", "ubuntu@22.04:arm64", "ubuntu@24.04:amd64")
	got, err := Select(declared, nil, "amd64")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 2 || got[0].Release != "22.04" || got[1].Release != "24.04" {
		t.Fatalf("unexpected selection: %v", got)
	}
}

func TestSelectValidatesRequests(t *testing.T) {
	declared := mustPlatforms(t, "ubuntu@22.04:amd64", "ubuntu@22.04:arm64")
	tests := []struct {
		name      string
		requested []Platform
		want      string
	}{
		{"duplicate", mustPlatforms(t, "ubuntu@22.04:amd64", "ubuntu@22.04:amd64"), "more than once"},
		{"undeclared", mustPlatforms(t, "ubuntu@24.04:amd64"), "not found"},
		{"other arch", mustPlatforms(t, "ubuntu@22.04:arm64"), "does not match"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Select(declared, tc.requested, "amd64")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	got, err := Select(declared, mustPlatforms(t, "ubuntu@22.04:amd64"), "amd64")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected single selection, got %v (%v)", got, err)
	}
}

func TestArchitectureMapping(t *testing.T) {
	if architectureFor("ppc64le") != "ppc64el" {
		t.Fatal("ppc64le should map to ppc64el")
	}
	if architectureFor("amd64") != "amd64" || architectureFor("arm64") != "arm64" {
		t.Fatal("amd64/arm64 should map unchanged")
	}
	if HostArchitecture() == "" {
		t.Fatal("expected host architecture")
	}
}

func TestLabel(t *testing.T) {
	p := Platform{OS: "ubuntu", Release: "22.04", Architecture: "amd64"}
	if p.Label() != "Ubuntu 22.04 (amd64)" {
		t.Fatalf("unexpected label %q", p.Label())
	}
}

func mustPlatforms(t *testing.T, values ...string) []Platform {
	t.Helper()
	out := make([]Platform, 0, len(values))
	for _, v := range values {
		p, err := ParsePlatform(v)
		if err != nil {
			t.Fatalf("ParsePlatform(%q): %v", v, err)
		}
		out = append(out, p)
	}
	return out
}
