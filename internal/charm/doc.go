// Package charm identifies the charm being packed.
//
// An Identity is a GitHub repository plus the path of charmcraft.yaml inside
// it. Detector derives candidate identities from git remotes and the charm's
// metadata, mirroring how the hub registry names charms.
package charm
