// Package engine aggregates detector signals into persisted events and
// drives the session block state machine. All ingestion paths funnel
// through one policy and one transactional append, so the threshold fires
// exactly once per session no matter which detector crosses it.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"proctor/internal/config"
	"proctor/internal/detect"
	"proctor/internal/evidence"
	"proctor/internal/ingest"
	"proctor/internal/logging"
	"proctor/internal/store"
)

// ErrInvalidPayload reports a client payload that could not be decoded.
var ErrInvalidPayload = errors.New("engine: invalid payload")

// Normalizer converts an uploaded audio file into the canonical mono WAV
// the audio analyzer consumes.
type Normalizer interface {
	Normalize(ctx context.Context, source string) (string, error)
}

// Policy decides when a session's accumulated events cross the blocking
// threshold.
type Policy struct {
	mode      string
	threshold float64
	reason    string
}

// PolicyFromConfig builds the blocking policy.
func PolicyFromConfig(cfg config.Policy) Policy {
	return Policy{mode: cfg.Mode, threshold: cfg.Threshold, reason: cfg.BlockReason}
}

// Decide implements store.DecideFunc semantics for the configured mode.
func (p Policy) Decide(suspiciousCount int, totalScore float64) (string, bool) {
	switch p.mode {
	case config.PolicyModeScore:
		if totalScore >= p.threshold {
			return p.reason, true
		}
	default:
		if float64(suspiciousCount) >= p.threshold {
			return p.reason, true
		}
	}
	return "", false
}

// Engine wires the detectors, the store, and the evidence vault together.
type Engine struct {
	store      *store.Store
	frames     *detect.FrameAnalyzer
	audio      *detect.AudioAnalyzer
	normalizer Normalizer
	vault      *evidence.Vault
	pool       *ingest.Pool
	policy     Policy
	cfg        *config.Config
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Options collects the engine's collaborators.
type Options struct {
	Store      *store.Store
	Frames     *detect.FrameAnalyzer
	Audio      *detect.AudioAnalyzer
	Normalizer Normalizer
	Vault      *evidence.Vault
	Pool       *ingest.Pool
	Config     *config.Config
	Logger     *slog.Logger
}

// New builds an engine. Store and Config are required; a nil Pool runs
// detectors inline.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:      opts.Store,
		frames:     opts.Frames,
		audio:      opts.Audio,
		normalizer: opts.Normalizer,
		vault:      opts.Vault,
		pool:       opts.Pool,
		policy:     PolicyFromConfig(opts.Config.Policy),
		cfg:        opts.Config,
		logger:     logger.With(logging.String(logging.FieldComponent, "engine")),
		locks:      make(map[int64]*sync.Mutex),
	}, nil
}

// sessionLock returns the mutex serializing ingests for one session.
func (e *Engine) sessionLock(sessionID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sessionID] = lock
	}
	return lock
}

// dispatch runs a detector call on the pool when one is configured.
func (e *Engine) dispatch(ctx context.Context, fn func()) error {
	if e.pool == nil {
		fn()
		return nil
	}
	return e.pool.Do(ctx, fn)
}

// scoreForType maps a known event type onto its configured score.
func (e *Engine) scoreForType(eventType store.EventType) float64 {
	d := e.cfg.Detection
	a := e.cfg.Audio
	switch eventType {
	case store.EventNoFace:
		return d.NoFaceScore
	case store.EventMultiFace:
		return d.MultiFaceScore
	case store.EventFaceMismatch:
		return d.MismatchScore
	case store.EventFaceUnknown:
		return d.UnknownFaceScore
	case store.EventGazeOffscreen:
		return d.GazeScore
	case store.EventDeviceDetected:
		return d.DeviceScore
	case store.EventTabSwitch:
		return d.TabSwitchScore
	case store.EventAudioOthers:
		return a.SpeechScore
	case store.EventAudioNoise:
		return a.NoiseScore
	case store.EventAudioError:
		return a.ErrorScore
	default:
		return 0
	}
}
