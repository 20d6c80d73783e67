package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"proctor/internal/config"
)

// Store manages proctoring persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the proctoring database and ensures the
// schema is current.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateCandidate inserts a new candidate identity. The embedding may be
// nil when enrollment has not captured a reference face yet.
func (s *Store) CreateCandidate(ctx context.Context, name, rollNumber string, embedding []float32) (*Candidate, error) {
	if name == "" || rollNumber == "" {
		return nil, errors.New("candidate name and roll number are required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO candidates (name, roll_number, embedding_json, blocked, blocked_reason, created_at, updated_at)
         VALUES (?, ?, ?, 0, NULL, ?, ?)`,
		name,
		rollNumber,
		marshalEmbedding(embedding),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert candidate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCandidate(ctx, id)
}

// GetCandidate fetches a candidate by identifier.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	candidate, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return candidate, nil
}

// GetCandidateByRoll fetches a candidate by unique roll number.
func (s *Store) GetCandidateByRoll(ctx context.Context, rollNumber string) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE roll_number = ?`, rollNumber)
	candidate, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate by roll: %w", err)
	}
	return candidate, nil
}

// SetCandidateEmbedding replaces the reference face embedding for a candidate.
func (s *Store) SetCandidateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE candidates SET embedding_json = ?, updated_at = ? WHERE id = ?`,
		marshalEmbedding(embedding),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set candidate embedding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCandidateNotFound
	}
	return nil
}

// StartSession returns the candidate's open session, creating one when none
// exists. Blocked candidates cannot start sessions.
func (s *Store) StartSession(ctx context.Context, candidateID int64) (*Session, error) {
	candidate, err := s.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate.Blocked {
		return nil, ErrCandidateBlocked
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE candidate_id = ? AND active = 1 ORDER BY id DESC LIMIT 1`,
		candidateID,
	)
	existing, err := scanSession(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find open session: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (candidate_id, started_at, active, suspicion_score, verdict, blocked, updated_at)
         VALUES (?, ?, 1, 0, ?, 0, ?)`,
		candidateID,
		now,
		VerdictClean,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession fetches a session by identifier.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// EndSession closes a session. Ending an already-closed session is a no-op.
func (s *Store) EndSession(ctx context.Context, id int64) (*Session, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET active = 0, ended_at = COALESCE(ended_at, ?), updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// SQLite reports zero affected rows for no-op updates too, so
		// distinguish a missing session explicitly.
		if _, err := s.GetSession(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.GetSession(ctx, id)
}

// EventsBySession returns a session's events ordered by insertion.
func (s *Store) EventsBySession(ctx context.Context, sessionID int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// AttachEvidence records the blob path for an event. The attachment is
// one-time: a second call for the same event fails.
func (s *Store) AttachEvidence(ctx context.Context, eventID int64, path string) error {
	if path == "" {
		return errors.New("evidence path is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE events SET evidence_path = ? WHERE id = ? AND evidence_path IS NULL`,
		path,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("attach evidence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEvidenceAttached
	}
	return nil
}

const candidateColumns = "id, name, roll_number, embedding_json, blocked, blocked_reason, created_at, updated_at"

const sessionColumns = "id, candidate_id, started_at, ended_at, active, suspicion_score, verdict, blocked, updated_at"

const eventColumns = "id, session_id, event_type, details, score, timestamp, evidence_path"

type scanner interface{ Scan(dest ...any) error }

func scanCandidate(sc scanner) (*Candidate, error) {
	var (
		id            int64
		name          string
		rollNumber    string
		embeddingJSON sql.NullString
		blocked       int64
		blockedReason sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := sc.Scan(&id, &name, &rollNumber, &embeddingJSON, &blocked, &blockedReason, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	candidate := &Candidate{
		ID:            id,
		Name:          name,
		RollNumber:    rollNumber,
		Blocked:       blocked != 0,
		BlockedReason: blockedReason.String,
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &candidate.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		candidate.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		candidate.UpdatedAt = updated
	}
	return candidate, nil
}

func scanSession(sc scanner) (*Session, error) {
	var (
		id          int64
		candidateID sql.NullInt64
		startedRaw  string
		endedRaw    sql.NullString
		active      int64
		score       float64
		verdict     string
		blocked     int64
		updatedRaw  string
	)
	if err := sc.Scan(&id, &candidateID, &startedRaw, &endedRaw, &active, &score, &verdict, &blocked, &updatedRaw); err != nil {
		return nil, err
	}

	session := &Session{
		ID:             id,
		CandidateID:    candidateID.Int64,
		Active:         active != 0,
		SuspicionScore: score,
		Verdict:        Verdict(verdict),
		Blocked:        blocked != 0,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		session.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, err := parseTimeString(endedRaw.String); err == nil {
			session.EndedAt = &ended
		}
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		id           int64
		sessionID    int64
		eventType    string
		details      string
		score        float64
		timestampRaw string
		evidencePath sql.NullString
	)
	if err := sc.Scan(&id, &sessionID, &eventType, &details, &score, &timestampRaw, &evidencePath); err != nil {
		return nil, err
	}

	event := &Event{
		ID:           id,
		SessionID:    sessionID,
		Type:         EventType(eventType),
		Details:      details,
		Score:        score,
		EvidencePath: evidencePath.String,
	}
	if timestamp, err := parseTimeString(timestampRaw); err == nil {
		event.Timestamp = timestamp
	}
	return event, nil
}

func marshalEmbedding(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil
	}
	return string(data)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
