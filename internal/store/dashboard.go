package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SnapshotFilter narrows Snapshots output. The zero value returns every
// session.
type SnapshotFilter struct {
	ActiveOnly  bool
	BlockedOnly bool
	CandidateID int64
}

// Snapshots returns sessions joined with candidate identity and last-event
// metadata, newest session first.
func (s *Store) Snapshots(ctx context.Context, filter SnapshotFilter) ([]*SessionSnapshot, error) {
	query := `
        SELECT se.id, se.candidate_id, se.started_at, se.ended_at, se.active,
               se.suspicion_score, se.verdict, se.blocked, se.updated_at,
               COALESCE(c.id, 0), COALESCE(c.name, ''), COALESCE(c.roll_number, ''),
               COALESCE(c.blocked, 0), COALESCE(c.blocked_reason, ''),
               COALESCE((SELECT e.event_type FROM events e WHERE e.session_id = se.id ORDER BY e.id DESC LIMIT 1), ''),
               (SELECT e.timestamp FROM events e WHERE e.session_id = se.id ORDER BY e.id DESC LIMIT 1),
               (SELECT COUNT(*) FROM events e WHERE e.session_id = se.id)
        FROM sessions se
        LEFT JOIN candidates c ON c.id = se.candidate_id`

	var (
		clauses []string
		args    []any
	)
	if filter.ActiveOnly {
		clauses = append(clauses, "se.active = 1")
	}
	if filter.BlockedOnly {
		clauses = append(clauses, "se.blocked = 1")
	}
	if filter.CandidateID != 0 {
		clauses = append(clauses, "se.candidate_id = ?")
		args = append(args, filter.CandidateID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY se.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*SessionSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// Stats aggregates counts for the admin overview.
func (s *Store) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM candidates`, &stats.TotalCandidates},
		{`SELECT COUNT(*) FROM sessions WHERE active = 1`, &stats.ActiveSessions},
		{`SELECT COUNT(*) FROM sessions WHERE verdict IN (?, ?)`, &stats.SuspiciousCount},
		{`SELECT COUNT(*) FROM sessions WHERE active = 1 AND verdict = ?`, &stats.CleanActiveCount},
	}
	args := [][]any{
		nil,
		nil,
		{VerdictSuspicious, VerdictBlocked},
		{VerdictClean},
	}
	for i, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, args[i]...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("dashboard stats: %w", err)
		}
	}
	return stats, nil
}

func scanSnapshot(sc scanner) (*SessionSnapshot, error) {
	var (
		snapshot     SessionSnapshot
		sessionID    int64
		candidateRef sql.NullInt64
		startedRaw   string
		endedRaw     sql.NullString
		active       int64
		score        float64
		verdict      string
		sessBlocked  int64
		updatedRaw   string
		candBlocked  int64
		lastEventRaw sql.NullString
	)
	if err := sc.Scan(
		&sessionID, &candidateRef, &startedRaw, &endedRaw, &active, &score, &verdict, &sessBlocked, &updatedRaw,
		&snapshot.CandidateID, &snapshot.CandidateName, &snapshot.RollNumber,
		&candBlocked, &snapshot.BlockedReason,
		&snapshot.LastEventType, &lastEventRaw, &snapshot.EventCount,
	); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	snapshot.Session = Session{
		ID:             sessionID,
		CandidateID:    candidateRef.Int64,
		Active:         active != 0,
		SuspicionScore: score,
		Verdict:        Verdict(verdict),
		Blocked:        sessBlocked != 0,
	}
	snapshot.Blocked = candBlocked != 0
	if started, err := parseTimeString(startedRaw); err == nil {
		snapshot.Session.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, err := parseTimeString(endedRaw.String); err == nil {
			snapshot.Session.EndedAt = &ended
		}
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		snapshot.Session.UpdatedAt = updated
	}
	if lastEventRaw.Valid {
		if lastEvent, err := parseTimeString(lastEventRaw.String); err == nil {
			snapshot.LastEventAt = &lastEvent
		}
	}
	return &snapshot, nil
}
