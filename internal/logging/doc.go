// Package logging builds slog loggers for the daemon and CLI.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log aggregation. Helpers in this package
// standardize attribute keys so session and request identifiers are
// queryable across components.
package logging
