package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"charmcraftcache/internal/platforms"
)

func TestSplitPackArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		extra     []string
		platforms []string
		config    string
		verbose   bool
	}{
		{
			name:  "unknown options pass through in order",
			args:  []string{"--bases-index", "1", "--verbosity=brief", "-q"},
			extra: []string{"--bases-index", "1", "--verbosity=brief", "-q"},
		},
		{
			name:      "known options are applied",
			args:      []string{"--platform", "ubuntu@22.04:amd64", "-v", "--platform=ubuntu@24.04:arm64", "-c", "/tmp/ccc.toml"},
			extra:     []string{},
			platforms: []string{"ubuntu@22.04:amd64", "ubuntu@24.04:arm64"},
			config:    "/tmp/ccc.toml",
			verbose:   true,
		},
		{
			name:      "mixed",
			args:      []string{"--destructive-mode", "--platform", "ubuntu@22.04:amd64", "--project-dir", "x"},
			extra:     []string{"--destructive-mode", "--project-dir", "x"},
			platforms: []string{"ubuntu@22.04:amd64"},
		},
		{
			name:   "everything after the separator is charmcraft's",
			args:   []string{"-c/etc/ccc.toml", "--", "--platform", "x", "-v"},
			extra:  []string{"--platform", "x", "-v"},
			config: "/etc/ccc.toml",
		},
		{
			name:  "grouped shorthands stay with charmcraft",
			args:  []string{"-vq"},
			extra: []string{"-vq"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flags := pflag.NewFlagSet("pack", pflag.ContinueOnError)
			platformValues := flags.StringArray("platform", nil, "")
			config := flags.StringP("config", "c", "", "")
			verbose := flags.BoolP("verbose", "v", false, "")

			extra, err := splitPackArgs(flags, tc.args)
			if err != nil {
				t.Fatalf("splitPackArgs: %v", err)
			}
			if !reflect.DeepEqual(extra, tc.extra) {
				t.Fatalf("extra = %q, want %q", extra, tc.extra)
			}
			if len(tc.platforms) > 0 || len(*platformValues) > 0 {
				if !reflect.DeepEqual(*platformValues, tc.platforms) {
					t.Fatalf("platforms = %q, want %q", *platformValues, tc.platforms)
				}
			}
			if *config != tc.config || *verbose != tc.verbose {
				t.Fatalf("config=%q verbose=%v, want %q %v", *config, *verbose, tc.config, tc.verbose)
			}
		})
	}
}

func TestSplitPackArgsMissingValue(t *testing.T) {
	flags := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	flags.StringArray("platform", nil, "")
	if _, err := splitPackArgs(flags, []string{"--platform"}); err == nil || !strings.Contains(err.Error(), "--platform") {
		t.Fatalf("expected missing argument error, got %v", err)
	}
}

func TestPackPassesUnknownOptionsToCharmcraft(t *testing.T) {
	env := setupCLITestEnv(t, 0)
	platform := "ubuntu@22.04:" + platforms.HostArchitecture()

	_, stderr, code := env.run(t, "pack", "--verbosity", "brief", "--platform", platform, "--destructive-mode")
	if code != 0 {
		t.Fatalf("pack exit %d: %s", code, stderr)
	}
	requireContains(t, env.packLogContents(t), "pack --platform "+platform+" --verbosity brief --destructive-mode")
}
