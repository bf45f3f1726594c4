// Package logging assembles structured slog loggers for ccc.
//
// It owns the console and JSON handlers and exposes context-aware helpers so
// resolver, materializer, and orchestrator code tag log lines with the charm
// key, platform, and orchestrator state. NewNop provides a discarding logger
// for tests.
package logging
