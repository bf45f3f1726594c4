// Package preflight provides readiness checks for the filesystem and the
// external binaries ccc depends on.
//
// These checks run in two contexts:
//   - ccc pack calls CheckFreeSpace (through the materializer) before any
//     wheel download, so a full disk fails before network I/O.
//   - ccc config validate calls RunAll to display cache directory access and
//     charmcraft/git availability.
package preflight
