// Package tracking keeps the local TOML list of charms registered with
// `ccc add`, with the platforms each was packed for.
package tracking
