// Package preflight provides readiness checks for the filesystem paths and
// detector binaries the daemon depends on.
//
// The checks run in two contexts:
//   - The daemon runs RunAll at startup and logs a warning for each failed
//     check. Missing detector binaries are not fatal because the analyzers
//     degrade to diagnostic events, but operators should know about them.
//   - The status endpoint includes the check results so "proctorctl status"
//     can display tool health without shell access to the daemon host.
package preflight
