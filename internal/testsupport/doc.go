// Package testsupport provides fixtures shared by package tests: isolated
// configs, a state store, and an HTTP server that publishes wheel files with
// injectable failures.
package testsupport
