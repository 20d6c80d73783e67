// Package api defines the transport-facing request and response types for
// the proctoring daemon, plus the conversions from storage models. Handlers
// and the CLI both consume these types so the wire format lives in one
// place.
package api
