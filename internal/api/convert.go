package api

import (
	"time"

	"proctor/internal/detect"
	"proctor/internal/engine"
	"proctor/internal/store"
)

// FromCandidate converts a storage candidate into its API shape. The
// embedding itself never leaves the daemon.
func FromCandidate(candidate *store.Candidate) Candidate {
	return Candidate{
		ID:            candidate.ID,
		Name:          candidate.Name,
		RollNumber:    candidate.RollNumber,
		Enrolled:      len(candidate.Embedding) > 0,
		Blocked:       candidate.Blocked,
		BlockedReason: candidate.BlockedReason,
		CreatedAt:     formatTime(candidate.CreatedAt),
	}
}

// FromSession converts a storage session into its API shape.
func FromSession(session *store.Session) Session {
	out := Session{
		ID:             session.ID,
		CandidateID:    session.CandidateID,
		StartedAt:      formatTime(session.StartedAt),
		Active:         session.Active,
		SuspicionScore: session.SuspicionScore,
		Verdict:        string(session.Verdict),
		Blocked:        session.Blocked,
	}
	if session.EndedAt != nil {
		out.EndedAt = formatTime(*session.EndedAt)
	}
	return out
}

// FromEvent converts a storage event, optionally carrying the detector's
// bounding box.
func FromEvent(event *store.Event, box *detect.Face) Event {
	out := Event{
		ID:           event.ID,
		SessionID:    event.SessionID,
		Type:         string(event.Type),
		Details:      event.Details,
		Score:        event.Score,
		Timestamp:    formatTime(event.Timestamp),
		EvidencePath: event.EvidencePath,
	}
	if box != nil {
		out.Box = &Box{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
	}
	return out
}

// FromIngestResult converts an engine ingest outcome into the upload
// response payload.
func FromIngestResult(result *engine.IngestResult) IngestResponse {
	events := make([]Event, 0, len(result.Events))
	for _, recorded := range result.Events {
		events = append(events, FromEvent(recorded.Event, recorded.Box))
	}
	return IngestResponse{
		Status:  "ok",
		Events:  events,
		Blocked: result.Blocked,
	}
}

// FromSnapshot converts a dashboard snapshot row.
func FromSnapshot(snapshot *store.SessionSnapshot) SessionSnapshot {
	out := SessionSnapshot{
		Session:          FromSession(&snapshot.Session),
		CandidateName:    snapshot.CandidateName,
		RollNumber:       snapshot.RollNumber,
		CandidateBlocked: snapshot.Blocked,
		BlockedReason:    snapshot.BlockedReason,
		LastEventType:    snapshot.LastEventType,
		EventCount:       snapshot.EventCount,
	}
	if snapshot.LastEventAt != nil {
		out.LastEventAt = formatTime(*snapshot.LastEventAt)
	}
	return out
}

// FromStats converts dashboard aggregates.
func FromStats(stats *store.DashboardStats) Stats {
	return Stats{
		TotalCandidates:  stats.TotalCandidates,
		ActiveSessions:   stats.ActiveSessions,
		SuspiciousCount:  stats.SuspiciousCount,
		CleanActiveCount: stats.CleanActiveCount,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
