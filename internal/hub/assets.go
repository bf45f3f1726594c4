package hub

import (
	"context"

	"charmcraftcache/internal/github"
	"charmcraftcache/internal/services"
)

// ReleaseGetter looks up a release by tag.
type ReleaseGetter interface {
	ReleaseByTag(ctx context.Context, repository, tag string) (*github.Release, error)
}

// AssetIndex lists the artifacts attached to a build record's release.
type AssetIndex struct {
	repository string
	releases   ReleaseGetter
}

// NewAssetIndex builds an index over releases of the hub repository (owner/name).
func NewAssetIndex(repository string, releases ReleaseGetter) *AssetIndex {
	return &AssetIndex{repository: repository, releases: releases}
}

// Assets returns the record's artifacts in API order. A release tag that
// does not resolve is services.ErrReleaseNotFound.
func (a *AssetIndex) Assets(ctx context.Context, record BuildRecord) ([]Artifact, error) {
	release, err := a.releases.ReleaseByTag(ctx, a.repository, record.Release)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, services.Wrap(services.ErrReleaseNotFound, "resolve", record.Release, "", err)
		}
		return nil, err
	}
	artifacts := make([]Artifact, 0, len(release.Assets))
	for _, asset := range release.Assets {
		artifacts = append(artifacts, Artifact{
			Name:        asset.Name,
			Record:      record,
			DownloadURL: asset.BrowserDownloadURL,
			Size:        asset.Size,
			Digest:      asset.Digest,
		})
	}
	return artifacts, nil
}
