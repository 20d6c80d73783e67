package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"proctor/internal/api"
	"proctor/internal/config"
	"proctor/internal/engine"
	"proctor/internal/ingest"
	"proctor/internal/logging"
	"proctor/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", srv.handleRegister)
	mux.HandleFunc("/api/session/start", srv.handleSessionStart)
	mux.HandleFunc("/api/session/end", srv.handleSessionEnd)
	mux.HandleFunc("/api/upload-frame", srv.handleUploadFrame)
	mux.HandleFunc("/api/upload-audio", srv.handleUploadAudio)
	mux.HandleFunc("/api/verify-face", srv.handleVerifyFace)
	mux.HandleFunc("/api/report-event", srv.handleReportEvent)
	mux.HandleFunc("/api/block", srv.handleBlock)
	mux.HandleFunc("/api/unblock", srv.handleUnblock)
	mux.HandleFunc("/api/sessions", srv.handleSessions)
	mux.HandleFunc("/api/sessions/", srv.handleSessionEvents)
	mux.HandleFunc("/api/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           srv.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID tags every request with a UUID correlation id, carried on
// the context for handler logging.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) requestLogger(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), s.logger)
}

func (s *apiServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	candidate, err := s.daemon.engine.RegisterCandidate(r.Context(), req.Name, req.RollNumber, req.Frame)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RegisterResponse{Status: "ok", Candidate: api.FromCandidate(candidate)})
}

func (s *apiServer) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req api.SessionStartRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	session, err := s.daemon.engine.StartSession(r.Context(), req.CandidateID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Status: "ok", Session: api.FromSession(session)})
}

func (s *apiServer) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	var req api.SessionEndRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	session, err := s.daemon.engine.EndSession(r.Context(), req.SessionID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Status: "ok", Session: api.FromSession(session)})
}

func (s *apiServer) handleUploadFrame(w http.ResponseWriter, r *http.Request) {
	var req api.UploadFrameRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	if req.Frame == "" && !req.TabSwitch {
		s.writeError(w, http.StatusBadRequest, "frame or tab_switch is required")
		return
	}
	result, err := s.daemon.engine.IngestFrame(r.Context(), req.SessionID, req.Frame, req.TabSwitch)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromIngestResult(result))
}

func (s *apiServer) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	var req api.UploadAudioRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	audio, err := decodeAudioPayload(req.Audio)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.engine.IngestAudio(r.Context(), req.SessionID, audio)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromIngestResult(result))
}

func (s *apiServer) handleVerifyFace(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyFaceRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	result, err := s.daemon.engine.VerifyFace(r.Context(), req.SessionID, req.Frame)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VerifyFaceResponse{
		Status:     "ok",
		Verified:   result.Verified,
		Confidence: result.Confidence,
		Blocked:    result.Session.Blocked,
	})
}

func (s *apiServer) handleReportEvent(w http.ResponseWriter, r *http.Request) {
	var req api.ReportEventRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	result, err := s.daemon.engine.ReportEvent(r.Context(), req.SessionID, req.EventType, req.Details)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromIngestResult(result))
}

func (s *apiServer) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req api.BlockRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	if err := s.daemon.engine.Block(r.Context(), req.CandidateID, req.Reason); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleUnblock(w http.ResponseWriter, r *http.Request) {
	var req api.UnblockRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	if err := s.daemon.engine.Unblock(r.Context(), req.CandidateID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter := store.SnapshotFilter{
		ActiveOnly:  queryFlag(r, "active"),
		BlockedOnly: queryFlag(r, "blocked"),
	}
	if value := strings.TrimSpace(r.URL.Query().Get("candidate")); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid candidate id")
			return
		}
		filter.CandidateID = id
	}

	snapshots, err := s.daemon.engine.Sessions(r.Context(), filter)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	stats, err := s.daemon.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	views := make([]api.SessionSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		views = append(views, api.FromSnapshot(snapshot))
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: views, Stats: api.FromStats(stats)})
}

func (s *apiServer) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	idStr, ok := strings.CutSuffix(rest, "/events")
	if !ok || idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	events, err := s.daemon.engine.SessionEvents(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	views := make([]api.Event, 0, len(events))
	for _, event := range events {
		views = append(views, api.FromEvent(event, nil))
	}
	s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: views})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	checks := make([]api.Check, 0, len(status.Checks))
	for _, check := range status.Checks {
		checks = append(checks, api.Check{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		DBPath:       status.DBPath,
		EvidenceDir:  status.EvidenceDir,
		LockFilePath: status.LockFilePath,
		Uptime:       status.Uptime.Round(time.Second).String(),
		Pool: api.PoolStats{
			Workers:    status.PoolWorkers,
			QueueDepth: status.PoolDepth,
			Pending:    status.PoolPending,
		},
		Checks: checks,
	})
}

// decodePost enforces POST + JSON body decoding, writing the error response
// itself when the request is unusable.
func (s *apiServer) decodePost(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeEngineError maps engine and store errors onto the API error
// taxonomy.
func (s *apiServer) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r)
	switch {
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrCandidateNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidPayload), errors.Is(err, store.ErrUnknownEventType):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrCandidateBlocked):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ingest.ErrBusy):
		logger.Warn("analysis pool saturated")
		s.writeError(w, http.StatusServiceUnavailable, "analysis pool saturated, retry later")
	default:
		logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func decodeAudioPayload(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if idx := strings.IndexByte(encoded, ','); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	if encoded == "" {
		return nil, errors.New("audio payload is required")
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return audio, nil
}

func queryFlag(r *http.Request, name string) bool {
	value := r.URL.Query().Get(name)
	return value == "1" || strings.EqualFold(value, "true")
}
