package engine

import (
	"context"
	"fmt"
	"strings"

	"proctor/internal/logging"
	"proctor/internal/media"
	"proctor/internal/store"
)

// RegisterCandidate enrolls a new candidate. When an enrollment frame is
// supplied, its face embedding is captured as the reference identity.
func (e *Engine) RegisterCandidate(ctx context.Context, name, rollNumber, encodedFrame string) (*store.Candidate, error) {
	name = strings.TrimSpace(name)
	rollNumber = strings.TrimSpace(rollNumber)
	if name == "" || rollNumber == "" {
		return nil, fmt.Errorf("%w: name and roll number are required", ErrInvalidPayload)
	}

	var embedding []float32
	if encodedFrame != "" {
		frame, err := media.DecodeFrame(encodedFrame)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if e.frames != nil {
			if err := e.dispatch(ctx, func() {
				embedding, err = e.frames.Enroll(ctx, frame)
			}); err != nil {
				return nil, err
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
	}

	candidate, err := e.store.CreateCandidate(ctx, name, rollNumber, embedding)
	if err != nil {
		return nil, err
	}
	e.logger.Info("candidate registered",
		logging.Int64(logging.FieldCandidateID, candidate.ID),
		logging.String("roll_number", candidate.RollNumber),
	)
	return candidate, nil
}

// StartSession opens (or resumes) the candidate's monitoring session.
func (e *Engine) StartSession(ctx context.Context, candidateID int64) (*store.Session, error) {
	session, err := e.store.StartSession(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("session started",
		logging.Int64(logging.FieldSessionID, session.ID),
		logging.Int64(logging.FieldCandidateID, candidateID),
	)
	return session, nil
}

// EndSession closes a session.
func (e *Engine) EndSession(ctx context.Context, sessionID int64) (*store.Session, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.store.EndSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("session ended", logging.Int64(logging.FieldSessionID, sessionID))
	return session, nil
}

// Block blocks a candidate with an operator-supplied reason, closing any
// open sessions. No threshold applies.
func (e *Engine) Block(ctx context.Context, candidateID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Blocked by administrator"
	}
	if err := e.store.BlockCandidate(ctx, candidateID, reason); err != nil {
		return err
	}
	e.logger.Warn("candidate blocked",
		logging.Int64(logging.FieldCandidateID, candidateID),
		logging.String("reason", reason),
	)
	return nil
}

// Unblock clears a candidate's block. The operation is idempotent.
func (e *Engine) Unblock(ctx context.Context, candidateID int64) error {
	if err := e.store.UnblockCandidate(ctx, candidateID); err != nil {
		return err
	}
	e.logger.Info("candidate unblocked", logging.Int64(logging.FieldCandidateID, candidateID))
	return nil
}

// Sessions returns dashboard snapshots.
func (e *Engine) Sessions(ctx context.Context, filter store.SnapshotFilter) ([]*store.SessionSnapshot, error) {
	return e.store.Snapshots(ctx, filter)
}

// SessionEvents returns a session's event log.
func (e *Engine) SessionEvents(ctx context.Context, sessionID int64) ([]*store.Event, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.EventsBySession(ctx, sessionID)
}

// Stats returns dashboard aggregates.
func (e *Engine) Stats(ctx context.Context) (*store.DashboardStats, error) {
	return e.store.Stats(ctx)
}

// PoolStats reports the analysis pool state for the status endpoint.
func (e *Engine) PoolStats() (workers, queueDepth, pending int) {
	if e.pool == nil {
		return 0, 0, 0
	}
	stats := e.pool.Stats()
	return stats.Workers, stats.QueueDepth, stats.Pending
}
