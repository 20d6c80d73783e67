package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"proctor/internal/detect"
	"proctor/internal/logging"
	"proctor/internal/media"
	"proctor/internal/store"
)

// IngestResult is the outcome of one monitoring upload.
type IngestResult struct {
	Session *store.Session
	Events  []RecordedEvent
	Blocked bool
}

// RecordedEvent pairs a persisted event with the detector's bounding box,
// which is returned to clients but not stored.
type RecordedEvent struct {
	Event *store.Event
	Box   *detect.Face
}

// IngestFrame analyzes one webcam frame for a session, optionally
// synthesizing a tab_switch event reported alongside it.
func (e *Engine) IngestFrame(ctx context.Context, sessionID int64, encodedFrame string, tabSwitch bool) (*IngestResult, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var signals []detect.Signal
	var frame *media.Frame
	if encodedFrame != "" {
		frame, err = media.DecodeFrame(encodedFrame)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		reference := e.referenceEmbedding(ctx, session)
		if e.frames != nil {
			if err := e.dispatch(ctx, func() {
				signals = e.frames.AnalyzeFrame(ctx, frame, reference)
			}); err != nil {
				return nil, err
			}
		}
	}
	if tabSwitch {
		signals = append(signals, detect.Signal{
			Type:    store.EventTabSwitch,
			Details: "User switched tab or minimized window",
			Score:   e.cfg.Detection.TabSwitchScore,
		})
	}

	result, err := e.persistSignals(ctx, session, signals)
	if err != nil {
		return nil, err
	}
	if frame != nil && len(result.Events) > 0 {
		e.saveFrameEvidence(ctx, sessionID, frame, result.Events)
	}
	return result, nil
}

// IngestAudio analyzes one microphone chunk for a session. Resample and
// decode failures degrade into an audio_error event rather than failing
// the upload.
func (e *Engine) IngestAudio(ctx context.Context, sessionID int64, audio []byte) (*IngestResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio payload", ErrInvalidPayload)
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	signals, err := e.audioSignals(ctx, audio)
	if err != nil {
		return nil, err
	}
	result, err := e.persistSignals(ctx, session, signals)
	if err != nil {
		return nil, err
	}
	if len(result.Events) > 0 {
		e.saveAudioEvidence(ctx, sessionID, audio, result.Events)
	}
	return result, nil
}

// audioSignals prepares a chunk for analysis. Preprocessing failures
// degrade into an audio_error signal; only dispatch failures (pool
// saturation, cancellation) surface as errors.
func (e *Engine) audioSignals(ctx context.Context, audio []byte) ([]detect.Signal, error) {
	audioError := func(err error) []detect.Signal {
		e.logger.Warn("audio preprocessing failed", logging.Error(err))
		return []detect.Signal{{
			Type:    store.EventAudioError,
			Details: fmt.Sprintf("Audio processing failed: %v", err),
			Score:   e.cfg.Audio.ErrorScore,
		}}
	}

	workDir := filepath.Join(e.cfg.Paths.DataDir, "tmp")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return audioError(err), nil
	}
	rawPath := filepath.Join(workDir, uuid.NewString()+".audio")
	if err := os.WriteFile(rawPath, audio, 0o644); err != nil {
		return audioError(err), nil
	}
	defer os.Remove(rawPath)

	wavPath := rawPath
	wavBytes := audio
	if e.normalizer != nil {
		normalized, err := e.normalizer.Normalize(ctx, rawPath)
		if err != nil {
			return audioError(err), nil
		}
		defer os.Remove(normalized)
		data, err := os.ReadFile(normalized)
		if err != nil {
			return audioError(err), nil
		}
		wavPath = normalized
		wavBytes = data
	}

	clip, err := media.ParseWAV(wavBytes)
	if err != nil {
		return audioError(err), nil
	}

	var signals []detect.Signal
	if e.audio != nil {
		if err := e.dispatch(ctx, func() {
			signals = e.audio.AnalyzeAudio(ctx, clip, wavPath)
		}); err != nil {
			return nil, err
		}
	}
	return signals, nil
}

// VerifyResult is the outcome of an explicit face verification.
type VerifyResult struct {
	Verified   bool
	Confidence float64
	Session    *store.Session
}

// VerifyFace checks a frame against the session candidate's reference
// embedding and logs a face_verification event either way.
func (e *Engine) VerifyFace(ctx context.Context, sessionID int64, encodedFrame string) (*VerifyResult, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	frame, err := media.DecodeFrame(encodedFrame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var (
		verified   bool
		confidence float64
	)
	reference := e.referenceEmbedding(ctx, session)
	if e.frames != nil {
		if err := e.dispatch(ctx, func() {
			var verifyErr error
			verified, confidence, verifyErr = e.frames.VerifyFace(ctx, frame, reference)
			if verifyErr != nil {
				e.logger.Warn("face verification failed", logging.Error(verifyErr))
				verified, confidence = false, 0
			}
		}); err != nil {
			return nil, err
		}
	}

	score := 1.0
	if verified {
		score = 0
	}
	signal := detect.Signal{
		Type:    store.EventFaceVerification,
		Details: fmt.Sprintf("Verified: %t, Confidence: %.4f", verified, confidence),
		Score:   score,
	}
	result, err := e.persistSignals(ctx, session, []detect.Signal{signal})
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Verified: verified, Confidence: confidence, Session: result.Session}, nil
}

// ReportEvent records a client-reported event. The type must belong to the
// known enum; known scored types take their configured score.
func (e *Engine) ReportEvent(ctx context.Context, sessionID int64, eventType, details string) (*IngestResult, error) {
	parsed, ok := store.ParseEventType(eventType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownEventType, eventType)
	}
	if details == "" && parsed == store.EventTabSwitch {
		details = "User switched tab or minimized window"
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	signal := detect.Signal{
		Type:    parsed,
		Details: details,
		Score:   e.scoreForType(parsed),
	}
	return e.persistSignals(ctx, session, []detect.Signal{signal})
}

func (e *Engine) persistSignals(ctx context.Context, session *store.Session, signals []detect.Signal) (*IngestResult, error) {
	if len(signals) == 0 {
		return &IngestResult{Session: session, Blocked: session.Blocked}, nil
	}

	events := make([]store.Event, len(signals))
	for i, signal := range signals {
		events[i] = store.Event{
			Type:    signal.Type,
			Details: signal.Details,
			Score:   signal.Score,
		}
	}
	outcome, err := e.store.AppendEvents(ctx, session.ID, events, e.policy.Decide)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		Session: outcome.Session,
		Blocked: outcome.Session.Blocked,
	}
	for i, event := range outcome.Inserted {
		result.Events = append(result.Events, RecordedEvent{Event: event, Box: signals[i].Box})
		e.logger.Info("event recorded",
			logging.Int64(logging.FieldSessionID, session.ID),
			logging.String(logging.FieldEventType, string(event.Type)),
			logging.Float64("score", event.Score),
		)
	}
	if outcome.Blocked {
		e.logger.Warn("session blocked",
			logging.Int64(logging.FieldSessionID, session.ID),
			logging.String("reason", outcome.BlockReason),
		)
	}
	return result, nil
}

// Evidence writes happen after the event transaction commits and are best
// effort: a full disk must not undo recorded suspicion.
func (e *Engine) saveFrameEvidence(ctx context.Context, sessionID int64, frame *media.Frame, events []RecordedEvent) {
	if e.vault == nil {
		return
	}
	rel, err := e.vault.SaveFrame(sessionID, frame.Data, frame.Format)
	if err != nil {
		e.logger.Warn("frame evidence write failed", logging.Error(err))
		return
	}
	e.attachEvidence(ctx, rel, events)
}

func (e *Engine) saveAudioEvidence(ctx context.Context, sessionID int64, audio []byte, events []RecordedEvent) {
	if e.vault == nil {
		return
	}
	rel, err := e.vault.SaveAudio(sessionID, audio)
	if err != nil {
		e.logger.Warn("audio evidence write failed", logging.Error(err))
		return
	}
	e.attachEvidence(ctx, rel, events)
}

func (e *Engine) attachEvidence(ctx context.Context, rel string, events []RecordedEvent) {
	for _, recorded := range events {
		if err := e.store.AttachEvidence(ctx, recorded.Event.ID, rel); err != nil {
			e.logger.Warn("evidence attach failed", logging.Error(err))
			continue
		}
		recorded.Event.EvidencePath = rel
	}
}

func (e *Engine) referenceEmbedding(ctx context.Context, session *store.Session) []float32 {
	if session.CandidateID == 0 {
		return nil
	}
	candidate, err := e.store.GetCandidate(ctx, session.CandidateID)
	if err != nil {
		e.logger.Warn("candidate lookup failed", logging.Error(err))
		return nil
	}
	return candidate.Embedding
}
