package store

import "errors"

var (
	// ErrCandidateNotFound reports a candidate id or roll number with no row.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrSessionNotFound reports a session id with no row.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCandidateBlocked reports an attempt to start a session for a
	// blocked candidate.
	ErrCandidateBlocked = errors.New("candidate is blocked")
	// ErrEvidenceAttached reports a second evidence attachment on an event.
	ErrEvidenceAttached = errors.New("evidence already attached")
	// ErrUnknownEventType reports an event type outside the closed enum.
	ErrUnknownEventType = errors.New("unknown event type")
)
