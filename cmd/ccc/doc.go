// Package main hosts the ccc CLI.
//
// ccc wraps `charmcraft pack`: it resolves the pre-built wheels the hub has
// published for the current charm, places them in the charm's shared cache
// directory and runs charmcraft with CRAFT_SHARED_CACHE pointing there.
// Commands stay thin; resolution, downloads and packing live in internal/.
package main
