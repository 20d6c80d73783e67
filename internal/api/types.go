package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Candidate describes an enrolled candidate in a transport-friendly format.
type Candidate struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	RollNumber    string `json:"rollNumber"`
	Enrolled      bool   `json:"enrolled"`
	Blocked       bool   `json:"blocked"`
	BlockedReason string `json:"blockedReason,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// Session describes a monitoring session.
type Session struct {
	ID             int64   `json:"id"`
	CandidateID    int64   `json:"candidateId,omitempty"`
	StartedAt      string  `json:"startedAt,omitempty"`
	EndedAt        string  `json:"endedAt,omitempty"`
	Active         bool    `json:"active"`
	SuspicionScore float64 `json:"suspicionScore"`
	Verdict        string  `json:"verdict"`
	Blocked        bool    `json:"blocked"`
}

// Box is a face bounding box in frame pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Event describes one recorded suspicion event.
type Event struct {
	ID           int64   `json:"id"`
	SessionID    int64   `json:"sessionId"`
	Type         string  `json:"type"`
	Details      string  `json:"details,omitempty"`
	Score        float64 `json:"score"`
	Timestamp    string  `json:"timestamp,omitempty"`
	EvidencePath string  `json:"evidencePath,omitempty"`
	Box          *Box    `json:"box,omitempty"`
}

// SessionSnapshot joins a session with candidate identity and last-event
// metadata for the dashboard.
type SessionSnapshot struct {
	Session          Session `json:"session"`
	CandidateName    string  `json:"candidateName,omitempty"`
	RollNumber       string  `json:"rollNumber,omitempty"`
	CandidateBlocked bool    `json:"candidateBlocked"`
	BlockedReason    string  `json:"blockedReason,omitempty"`
	LastEventType    string  `json:"lastEventType,omitempty"`
	LastEventAt      string  `json:"lastEventAt,omitempty"`
	EventCount       int     `json:"eventCount"`
}

// Stats aggregates dashboard counts.
type Stats struct {
	TotalCandidates  int `json:"totalCandidates"`
	ActiveSessions   int `json:"activeSessions"`
	SuspiciousCount  int `json:"suspiciousCount"`
	CleanActiveCount int `json:"cleanActiveCount"`
}

// PoolStats reports the analysis worker pool for the status endpoint.
type PoolStats struct {
	Workers    int `json:"workers"`
	QueueDepth int `json:"queueDepth"`
	Pending    int `json:"pending"`
}

// RegisterRequest enrolls a candidate, optionally with a reference frame.
type RegisterRequest struct {
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
	Frame      string `json:"frame,omitempty"`
}

// RegisterResponse wraps the enrolled candidate.
type RegisterResponse struct {
	Status    string    `json:"status"`
	Candidate Candidate `json:"candidate"`
}

// SessionStartRequest opens a session for a candidate.
type SessionStartRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

// SessionEndRequest closes a session.
type SessionEndRequest struct {
	SessionID int64 `json:"session_id"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Status  string  `json:"status"`
	Session Session `json:"session"`
}

// UploadFrameRequest carries one webcam frame and optional client signals.
type UploadFrameRequest struct {
	SessionID int64  `json:"session_id"`
	Frame     string `json:"frame,omitempty"`
	TabSwitch bool   `json:"tab_switch,omitempty"`
}

// UploadAudioRequest carries one base64-encoded audio chunk.
type UploadAudioRequest struct {
	SessionID int64  `json:"session_id"`
	Audio     string `json:"audio"`
}

// IngestResponse reports the events an upload produced.
type IngestResponse struct {
	Status  string  `json:"status"`
	Events  []Event `json:"events"`
	Blocked bool    `json:"blocked"`
}

// VerifyFaceRequest carries one frame for explicit identity verification.
type VerifyFaceRequest struct {
	SessionID int64  `json:"session_id"`
	Frame     string `json:"frame"`
}

// VerifyFaceResponse reports the verification outcome.
type VerifyFaceResponse struct {
	Status     string  `json:"status"`
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Blocked    bool    `json:"blocked"`
}

// ReportEventRequest records a client-observed event.
type ReportEventRequest struct {
	SessionID int64  `json:"session_id"`
	EventType string `json:"event_type"`
	Details   string `json:"details,omitempty"`
}

// BlockRequest blocks a candidate with an operator reason.
type BlockRequest struct {
	CandidateID int64  `json:"candidate_id"`
	Reason      string `json:"reason,omitempty"`
}

// UnblockRequest clears a candidate's block.
type UnblockRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

// SessionListResponse is the dashboard payload.
type SessionListResponse struct {
	Sessions []SessionSnapshot `json:"sessions"`
	Stats    Stats             `json:"stats"`
}

// EventListResponse wraps one session's event log.
type EventListResponse struct {
	Events []Event `json:"events"`
}

// Check reports one preflight check result for the status endpoint.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	DBPath       string    `json:"dbPath"`
	EvidenceDir  string    `json:"evidenceDir"`
	LockFilePath string    `json:"lockFilePath"`
	Uptime       string    `json:"uptime"`
	Pool         PoolStats `json:"pool"`
	Checks       []Check   `json:"checks,omitempty"`
}
