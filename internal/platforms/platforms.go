package platforms

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"charmcraftcache/internal/services"
)

// Platform is a build platform in shorthand notation. Build-on and build-for
// are the same triple by construction.
type Platform struct {
	OS           string
	Release      string
	Architecture string
}

// String returns the shorthand form os@release:arch.
func (p Platform) String() string {
	return p.OS + "@" + p.Release + ":" + p.Architecture
}

// Label returns a human friendly description such as "Ubuntu 22.04 (amd64)".
func (p Platform) Label() string {
	return cases.Title(language.Und).String(p.OS) + " " + p.Release + " (" + p.Architecture + ")"
}

// Document is the subset of charmcraft.yaml ccc consults.
type Document struct {
	Platforms []Platform
	// StrictDependencies mirrors charm-strict-dependencies. It is reported only.
	StrictDependencies bool
}

// ParseFile reads and parses a charmcraft.yaml file.
func ParseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse extracts shorthand platforms from a charmcraft.yaml document,
// preserving their document order and any duplicates.
func Parse(data []byte) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Document{}, fmt.Errorf("decode charmcraft.yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return Document{}, unsupported("platforms", "charmcraft.yaml is empty")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return Document{}, unsupported("", "charmcraft.yaml must be a mapping")
	}

	var (
		doc          Document
		platformsVal *yaml.Node
	)
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		switch key.Value {
		case "base", "bases":
			return Document{}, unsupported(key.Value, "use shorthand 'platforms' notation instead")
		case "platforms":
			platformsVal = value
		case "charm-strict-dependencies":
			var strict bool
			if err := value.Decode(&strict); err != nil {
				return Document{}, fmt.Errorf("charm-strict-dependencies: %w", err)
			}
			doc.StrictDependencies = strict
		}
	}

	if platformsVal == nil || isNull(platformsVal) {
		return Document{}, unsupported("platforms", "no platforms declared")
	}
	if platformsVal.Kind != yaml.MappingNode {
		return Document{}, unsupported("platforms", "expected a mapping of shorthand entries")
	}
	if len(platformsVal.Content) == 0 {
		return Document{}, unsupported("platforms", "no platforms declared")
	}

	for i := 0; i+1 < len(platformsVal.Content); i += 2 {
		key, value := platformsVal.Content[i], platformsVal.Content[i+1]
		if !isNull(value) {
			return Document{}, unsupported(key.Value, "build-on/build-for entries are not supported")
		}
		platform, err := ParsePlatform(key.Value)
		if err != nil {
			return Document{}, err
		}
		doc.Platforms = append(doc.Platforms, platform)
	}
	return doc, nil
}

// ParsePlatform parses one shorthand platform such as ubuntu@22.04:amd64.
func ParsePlatform(value string) (Platform, error) {
	if value == "" || strings.ContainsAny(value, " \t\r\n") {
		return Platform{}, unsupported(value, "not a shorthand platform")
	}
	osPart, rest, ok := strings.Cut(value, "@")
	if !ok || strings.Contains(rest, "@") {
		return Platform{}, unsupported(value, "expected os@release:arch")
	}
	release, arch, ok := strings.Cut(rest, ":")
	if !ok || strings.Contains(arch, ":") {
		return Platform{}, unsupported(value, "expected os@release:arch")
	}
	if osPart == "" || release == "" || arch == "" {
		return Platform{}, unsupported(value, "expected os@release:arch")
	}
	return Platform{OS: osPart, Release: release, Architecture: arch}, nil
}

// HostArchitecture maps the running architecture to charmcraft's naming.
func HostArchitecture() string {
	return architectureFor(runtime.GOARCH)
}

func architectureFor(goarch string) string {
	switch goarch {
	case "ppc64le":
		return "ppc64el"
	default:
		// amd64, arm64, s390x and riscv64 share Go's spelling.
		return goarch
	}
}

// Select picks the platforms to pack. With no request it returns every
// declared platform built for hostArch. Requested platforms must be unique,
// declared in charmcraft.yaml, and built for hostArch.
func Select(declared []Platform, requested []Platform, hostArch string) ([]Platform, error) {
	if len(requested) == 0 {
		selected := make([]Platform, 0, len(declared))
		for _, p := range declared {
			if p.Architecture == hostArch {
				selected = append(selected, p)
			}
		}
		return selected, nil
	}

	seen := make(map[Platform]struct{}, len(requested))
	for _, p := range requested {
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("--platform %q passed more than once", p)
		}
		seen[p] = struct{}{}
	}
	for _, p := range requested {
		if !contains(declared, p) {
			return nil, fmt.Errorf("--platform %q not found in charmcraft.yaml platforms %v", p, declared)
		}
		if p.Architecture != hostArch {
			return nil, fmt.Errorf("architecture of --platform %q does not match this machine (%s)", p, hostArch)
		}
	}
	out := make([]Platform, len(requested))
	copy(out, requested)
	return out, nil
}

func contains(list []Platform, p Platform) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && (node.Tag == "!!null" || node.Value == "")
}

func unsupported(key, message string) error {
	if key == "" {
		return services.Wrap(services.ErrUnsupportedSyntax, "parse", "", message, nil)
	}
	return services.Wrap(services.ErrUnsupportedSyntax, "parse", fmt.Sprintf("%q", key), message, nil)
}
