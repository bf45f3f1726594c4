// Package hub reads the charmcraftcache hub: the ordered registry of build
// records and the wheel assets attached to each record's GitHub release.
package hub
