package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"proctor/internal/config"
	"proctor/internal/detect"
	"proctor/internal/detect/facetool"
	"proctor/internal/detect/objdetect"
	"proctor/internal/detect/speech"
	"proctor/internal/engine"
	"proctor/internal/evidence"
	"proctor/internal/ingest"
	"proctor/internal/logging"
	"proctor/internal/preflight"
	"proctor/internal/store"
)

// Daemon owns the store, the analysis pool, the engine, and the HTTP API.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine
	pool   *ingest.Pool
	api    *apiServer

	lockPath  string
	lock      *flock.Flock
	startedAt time.Time

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with all dependencies wired from configuration.
// External detector binaries are resolved lazily at call time, so a missing
// tool degrades per the analyzer rules instead of failing startup.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	vault, err := evidence.NewVault(cfg.Paths.EvidenceDir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	toolDir := filepath.Join(cfg.Paths.DataDir, "tmp")
	faces := facetool.NewService(cfg.Detection.FaceToolBinary, toolDir)
	objects := objdetect.NewService(cfg.Detection.ObjectToolBinary, toolDir, cfg.Detection.ObjectConfidence)
	transcriber := speech.NewService(cfg.Audio.TranscriberBinary, cfg.Audio.FFmpegBinary, cfg.Audio.SampleRate)

	pool := ingest.NewPool(cfg.Ingest)
	eng, err := engine.New(engine.Options{
		Store:      st,
		Frames:     detect.NewFrameAnalyzer(cfg.Detection, faces, faces, objects, logger),
		Audio:      detect.NewAudioAnalyzer(cfg.Audio, transcriber, logger),
		Normalizer: transcriber,
		Vault:      vault,
		Pool:       pool,
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		pool.Close()
		_ = st.Close()
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    st,
		engine:   eng,
		pool:     pool,
		lockPath: cfg.LockFilePath(),
		lock:     flock.New(cfg.LockFilePath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another proctord instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	for _, check := range preflight.RunAll(d.cfg) {
		if !check.Passed {
			d.logger.Warn("preflight check failed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
		}
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("proctord started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()),
	)
	return nil
}

// Stop shuts the API down, drains the pool, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.pool.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("proctord stopped")
}

// Close releases all daemon resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API listen address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status describes daemon runtime state.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	EvidenceDir  string
	LockFilePath string
	Uptime       time.Duration
	PoolWorkers  int
	PoolDepth    int
	PoolPending  int
	Checks       []preflight.Result
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() Status {
	workers, depth, pending := d.engine.PoolStats()
	var uptime time.Duration
	if d.running.Load() {
		uptime = time.Since(d.startedAt)
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		EvidenceDir:  d.cfg.Paths.EvidenceDir,
		LockFilePath: d.lockPath,
		Uptime:       uptime,
		PoolWorkers:  workers,
		PoolDepth:    depth,
		PoolPending:  pending,
		Checks:       preflight.RunAll(d.cfg),
	}
}
