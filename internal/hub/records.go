package hub

import (
	"strings"

	"charmcraftcache/internal/charm"
)

// BuildRecord is one historical build of a charm at a git ref, published as
// one release on the hub repository.
type BuildRecord struct {
	Identity charm.Identity
	Ref      string
	Release  string
}

// ReleaseTag derives the hub release tag for a charm identity and ref:
// <owner>_<name>_ccchub1_<path>_ccchub2_<ref> with slashes replaced.
func ReleaseTag(id charm.Identity, ref string) string {
	return releaseTag(id.Repository, id.Path, ref)
}

// releaseTag takes the repository as written so the tag keeps its case.
func releaseTag(repository, charmPath, ref string) string {
	tag := repository + "_ccchub1_" + charmPath + "_ccchub2_" + ref
	return strings.ReplaceAll(tag, "/", "_")
}

// Artifact is a downloadable file attached to a build record's release.
// Name doubles as the de-duplication key.
type Artifact struct {
	Name        string
	Record      BuildRecord
	DownloadURL string
	Size        int64
	// Digest is "sha256:<hex>" when published.
	Digest string
}

// SHA256 returns the hex digest when one is published.
func (a Artifact) SHA256() (string, bool) {
	hex, ok := strings.CutPrefix(a.Digest, "sha256:")
	if !ok || hex == "" {
		return "", false
	}
	return strings.ToLower(hex), true
}
