// Package daemon assembles the proctoring engine behind its HTTP API and
// enforces single-instance execution via a lock file.
package daemon
