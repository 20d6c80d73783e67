package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DecideFunc evaluates the running totals of a session after new events
// land and decides whether the session crosses the blocking threshold.
// It runs inside the append transaction and must not touch the store.
type DecideFunc func(suspiciousCount int, totalScore float64) (reason string, block bool)

// IngestOutcome describes how a batch of events changed a session.
type IngestOutcome struct {
	Session         *Session
	Inserted        []*Event
	SuspiciousCount int
	Blocked         bool
	BlockReason     string
}

// AppendEvents records a batch of events for a session and atomically
// recomputes the session's cumulative score and verdict. When decide
// reports a threshold crossing on a not-yet-blocked session, the session
// and its candidate are blocked inside the same transaction.
func (s *Store) AppendEvents(ctx context.Context, sessionID int64, events []Event, decide DecideFunc) (*IngestOutcome, error) {
	for i := range events {
		if !events[i].Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, events[i].Type)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := time.Now().UTC()
	outcome := &IngestOutcome{}
	for i := range events {
		event := events[i]
		event.SessionID = sessionID
		if event.Timestamp.IsZero() {
			event.Timestamp = now
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO events (session_id, event_type, details, score, timestamp, evidence_path)
             VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID,
			string(event.Type),
			event.Details,
			event.Score,
			event.Timestamp.Format(time.RFC3339Nano),
			nullableString(event.EvidencePath),
		)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		if event.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		outcome.Inserted = append(outcome.Inserted, &event)
	}

	totalScore, suspiciousCount, err := sessionTotals(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	outcome.SuspiciousCount = suspiciousCount

	// Informational types (face_verification, no_face diagnostics) never
	// move the verdict off clean on their own.
	verdict := session.Verdict
	if verdict != VerdictBlocked && suspiciousCount > 0 {
		verdict = VerdictSuspicious
	}

	var reason string
	var crossed bool
	if decide != nil && !session.Blocked {
		reason, crossed = decide(suspiciousCount, totalScore)
	}

	nowText := now.Format(time.RFC3339Nano)
	if crossed {
		verdict = VerdictBlocked
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE sessions
             SET suspicion_score = ?, verdict = ?, blocked = 1, active = 0,
                 ended_at = COALESCE(ended_at, ?), updated_at = ?
             WHERE id = ?`,
			totalScore, verdict, nowText, nowText, sessionID,
		); err != nil {
			return nil, fmt.Errorf("block session: %w", err)
		}
		if session.CandidateID != 0 {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE candidates SET blocked = 1, blocked_reason = ?, updated_at = ? WHERE id = ?`,
				reason, nowText, session.CandidateID,
			); err != nil {
				return nil, fmt.Errorf("block candidate: %w", err)
			}
		}
		outcome.Blocked = true
		outcome.BlockReason = reason
	} else {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE sessions SET suspicion_score = ?, verdict = ?, updated_at = ? WHERE id = ?`,
			totalScore, verdict, nowText, sessionID,
		); err != nil {
			return nil, fmt.Errorf("update session totals: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit events: %w", err)
	}

	updated, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	outcome.Session = updated
	return outcome, nil
}

// BlockCandidate blocks a candidate and closes any open sessions with a
// blocked verdict. The operation is idempotent aside from overwriting the
// recorded reason.
func (s *Store) BlockCandidate(ctx context.Context, candidateID int64, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	nowText := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(
		ctx,
		`UPDATE candidates SET blocked = 1, blocked_reason = ?, updated_at = ? WHERE id = ?`,
		reason, nowText, candidateID,
	)
	if err != nil {
		return fmt.Errorf("block candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCandidateNotFound
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sessions
         SET blocked = 1, verdict = ?, active = 0,
             ended_at = COALESCE(ended_at, ?), updated_at = ?
         WHERE candidate_id = ? AND active = 1`,
		VerdictBlocked, nowText, nowText, candidateID,
	); err != nil {
		return fmt.Errorf("close sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	return nil
}

// UnblockCandidate clears a candidate's blocked flag and reason, and resets
// any still-open blocked session to clean. Historical events are untouched.
// Unblocking an unblocked candidate succeeds without change.
func (s *Store) UnblockCandidate(ctx context.Context, candidateID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	nowText := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(
		ctx,
		`UPDATE candidates SET blocked = 0, blocked_reason = NULL, updated_at = ? WHERE id = ?`,
		nowText,
		candidateID,
	)
	if err != nil {
		return fmt.Errorf("unblock candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCandidateNotFound
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET blocked = 0, verdict = ?, updated_at = ?
         WHERE candidate_id = ? AND active = 1 AND blocked = 1`,
		VerdictClean, nowText, candidateID,
	); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unblock: %w", err)
	}
	return nil
}

func sessionTotals(ctx context.Context, tx *sql.Tx, sessionID int64) (float64, int, error) {
	var totalScore float64
	row := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(score), 0) FROM events WHERE session_id = ?`,
		sessionID,
	)
	if err := row.Scan(&totalScore); err != nil {
		return 0, 0, fmt.Errorf("sum scores: %w", err)
	}

	placeholders := ""
	args := []any{sessionID}
	for eventType := range suspiciousTypes {
		if placeholders != "" {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, string(eventType))
	}
	var suspiciousCount int
	row = tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ? AND event_type IN (`+placeholders+`)`,
		args...,
	)
	if err := row.Scan(&suspiciousCount); err != nil {
		return 0, 0, fmt.Errorf("count suspicious: %w", err)
	}
	return totalScore, suspiciousCount, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
