package store

import (
	"strings"
	"time"
)

// EventType identifies one detected signal kind. The set is closed: the
// ingestion pipeline rejects types outside this enum.
type EventType string

const (
	EventNoFace           EventType = "no_face"
	EventMultiFace        EventType = "multi_face"
	EventFaceMismatch     EventType = "face_mismatch"
	EventFaceUnknown      EventType = "face_unknown"
	EventGazeOffscreen    EventType = "gaze_offscreen"
	EventDeviceDetected   EventType = "device_detected"
	EventAudioOthers      EventType = "audio_others"
	EventAudioNoise       EventType = "audio_noise"
	EventAudioError       EventType = "audio_error"
	EventTabSwitch        EventType = "tab_switch"
	EventFaceVerification EventType = "face_verification"
)

var allEventTypes = []EventType{
	EventNoFace,
	EventMultiFace,
	EventFaceMismatch,
	EventFaceUnknown,
	EventGazeOffscreen,
	EventDeviceDetected,
	EventAudioOthers,
	EventAudioNoise,
	EventAudioError,
	EventTabSwitch,
	EventFaceVerification,
}

var eventTypeSet = func() map[EventType]struct{} {
	set := make(map[EventType]struct{}, len(allEventTypes))
	for _, t := range allEventTypes {
		set[t] = struct{}{}
	}
	return set
}()

// suspiciousTypes lists the event types that count toward the blocking
// threshold. Informational types (no_face, face_unknown, audio_error,
// face_verification) record evidence without advancing the policy.
var suspiciousTypes = map[EventType]struct{}{
	EventFaceMismatch:   {},
	EventGazeOffscreen:  {},
	EventMultiFace:      {},
	EventDeviceDetected: {},
	EventAudioOthers:    {},
	EventAudioNoise:     {},
	EventTabSwitch:      {},
}

// ParseEventType converts a string into a known EventType.
func ParseEventType(value string) (EventType, bool) {
	normalized := EventType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := eventTypeSet[normalized]
	return normalized, ok
}

// AllEventTypes returns the ordered list of known event types.
func AllEventTypes() []EventType {
	cp := make([]EventType, len(allEventTypes))
	copy(cp, allEventTypes)
	return cp
}

// IsSuspicious reports whether an event type counts toward the blocking
// threshold.
func (t EventType) IsSuspicious() bool {
	_, ok := suspiciousTypes[t]
	return ok
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypeSet[t]
	return ok
}

// Verdict classifies a session from its accumulated events.
type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictBlocked    Verdict = "blocked"
)

// Candidate is the durable identity of a person being proctored.
type Candidate struct {
	ID            int64
	Name          string
	RollNumber    string
	// Embedding is the reference face embedding captured at enrollment,
	// empty when none has been registered.
	Embedding     []float32
	Blocked       bool
	BlockedReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session is one proctored exam attempt, the unit of suspicion accumulation.
type Session struct {
	ID          int64
	// CandidateID is zero when the owning candidate has been removed.
	CandidateID int64
	StartedAt   time.Time
	EndedAt     *time.Time
	Active      bool
	// SuspicionScore caches the sum of event scores; the event log is
	// authoritative.
	SuspicionScore float64
	Verdict        Verdict
	Blocked        bool
	UpdatedAt      time.Time
}

// Event is one immutable, scored signal in a session's audit trail.
type Event struct {
	ID           int64
	SessionID    int64
	Type         EventType
	Details      string
	Score        float64
	Timestamp    time.Time
	// EvidencePath references a stored frame/audio blob, set at most once
	// after the event row is committed.
	EvidencePath string
}

// SessionSnapshot joins a session with its candidate identity and last
// event for dashboard presentation.
type SessionSnapshot struct {
	Session       Session
	CandidateName string
	RollNumber    string
	CandidateID   int64
	Blocked       bool
	BlockedReason string
	LastEventType string
	LastEventAt   *time.Time
	EventCount    int
}

// DashboardStats aggregates candidate and session counts for the admin view.
type DashboardStats struct {
	TotalCandidates  int
	ActiveSessions   int
	SuspiciousCount  int
	CleanActiveCount int
}
