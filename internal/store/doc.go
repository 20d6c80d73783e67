// Package store manages proctoring persistence backed by SQLite.
//
// Three tables back the engine: candidates (durable identity and sticky
// block status), sessions (one proctored attempt each), and events (the
// append-only audit trail of detected signals). The event log is the
// source of truth for a session's suspicion score; the sessions row only
// caches the materialized sum.
package store
