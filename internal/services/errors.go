package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedSyntax marks charmcraft.yaml constructs ccc refuses to handle.
	ErrUnsupportedSyntax = errors.New("unsupported syntax")
	// ErrRegistryUnavailable marks a hub registry that could not be fetched or parsed.
	ErrRegistryUnavailable = errors.New("registry unavailable")
	// ErrReleaseNotFound marks a build record whose release tag does not resolve.
	ErrReleaseNotFound = errors.New("release not found")
	// ErrNoCacheFound marks a charm identity absent from the hub registry.
	ErrNoCacheFound = errors.New("no cache found")
	// ErrArtifactFetchFailed marks a wheel download that could not complete.
	ErrArtifactFetchFailed = errors.New("artifact fetch failed")
	ErrConfiguration       = errors.New("configuration error")
	ErrExternalTool        = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort a pack invocation. Missing releases and
// missing caches degrade to a from-source build instead.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoCacheFound), errors.Is(err, ErrReleaseNotFound):
		return false
	default:
		return true
	}
}

// Hint returns a short remediation hint for a classified error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedSyntax):
		return "use shorthand 'platforms' notation (e.g. ubuntu@22.04:amd64) in charmcraft.yaml"
	case errors.Is(err, ErrRegistryUnavailable):
		return "check network access to the hub registry or set hub.registry_url"
	case errors.Is(err, ErrArtifactFetchFailed):
		return "re-run ccc pack; set GH_TOKEN if GitHub rate limits apply"
	case errors.Is(err, ErrNoCacheFound):
		return "run `ccc add` to request pre-built wheels for this charm"
	case errors.Is(err, ErrConfiguration):
		return "run `ccc config validate` to inspect configuration"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
