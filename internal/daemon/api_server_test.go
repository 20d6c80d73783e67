package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"proctor/internal/api"
	"proctor/internal/logging"
	"proctor/internal/testsupport"
)

func startDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func postJSON(t *testing.T, d *Daemon, path string, payload any, dest any) int {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post("http://"+d.Addr()+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if dest != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, d *Daemon, path string, dest any) int {
	t.Helper()
	resp, err := http.Get("http://" + d.Addr() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if dest != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func registerAndStart(t *testing.T, d *Daemon) (candidateID, sessionID int64) {
	t.Helper()
	var reg api.RegisterResponse
	if code := postJSON(t, d, "/api/register", api.RegisterRequest{Name: "Asha Rao", RollNumber: "CS21B042"}, &reg); code != http.StatusOK {
		t.Fatalf("register returned %d", code)
	}
	var sess api.SessionResponse
	if code := postJSON(t, d, "/api/session/start", api.SessionStartRequest{CandidateID: reg.Candidate.ID}, &sess); code != http.StatusOK {
		t.Fatalf("session/start returned %d", code)
	}
	return reg.Candidate.ID, sess.Session.ID
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer first.Close()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second instance must fail to acquire the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestTabSwitchReportsAccumulateToBlock(t *testing.T) {
	d := startDaemon(t)
	candidateID, sessionID := registerAndStart(t, d)

	var last api.IngestResponse
	for i := 0; i < 3; i++ {
		var resp api.IngestResponse
		code := postJSON(t, d, "/api/upload-frame", api.UploadFrameRequest{SessionID: sessionID, TabSwitch: true}, &resp)
		if code != http.StatusOK {
			t.Fatalf("upload-frame %d returned %d", i, code)
		}
		if len(resp.Events) != 1 || resp.Events[0].Type != "tab_switch" {
			t.Fatalf("unexpected events: %+v", resp.Events)
		}
		last = resp
	}
	if !last.Blocked {
		t.Fatal("third tab_switch must block the session")
	}

	// Blocked candidate cannot start a new session.
	code := postJSON(t, d, "/api/session/start", api.SessionStartRequest{CandidateID: candidateID}, nil)
	if code != http.StatusForbidden {
		t.Fatalf("session/start on blocked candidate returned %d, want 403", code)
	}

	// Unblock is idempotent and restores access.
	for i := 0; i < 2; i++ {
		if code := postJSON(t, d, "/api/unblock", api.UnblockRequest{CandidateID: candidateID}, nil); code != http.StatusOK {
			t.Fatalf("unblock returned %d", code)
		}
	}
	if code := postJSON(t, d, "/api/session/start", api.SessionStartRequest{CandidateID: candidateID}, nil); code != http.StatusOK {
		t.Fatalf("session/start after unblock returned %d", code)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	d := startDaemon(t)
	_, sessionID := registerAndStart(t, d)

	cases := []struct {
		name    string
		path    string
		payload any
		want    int
	}{
		{"unknown session", "/api/upload-frame", api.UploadFrameRequest{SessionID: 9999, TabSwitch: true}, http.StatusNotFound},
		{"bad frame payload", "/api/upload-frame", api.UploadFrameRequest{SessionID: sessionID, Frame: "!!!"}, http.StatusBadRequest},
		{"empty upload", "/api/upload-frame", api.UploadFrameRequest{SessionID: sessionID}, http.StatusBadRequest},
		{"unknown event type", "/api/report-event", api.ReportEventRequest{SessionID: sessionID, EventType: "telepathy"}, http.StatusBadRequest},
		{"unknown candidate block", "/api/block", api.BlockRequest{CandidateID: 9999}, http.StatusNotFound},
		{"empty audio", "/api/upload-audio", api.UploadAudioRequest{SessionID: sessionID}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if code := postJSON(t, d, tc.path, tc.payload, nil); code != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, code, tc.want)
		}
	}

	resp, err := http.Get("http://" + d.Addr() + "/api/sessions")
	if err != nil {
		t.Fatalf("GET sessions: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions returned %d", resp.StatusCode)
	}
}

func TestReportEventAndSessionLog(t *testing.T) {
	d := startDaemon(t)
	_, sessionID := registerAndStart(t, d)

	var resp api.IngestResponse
	code := postJSON(t, d, "/api/report-event", api.ReportEventRequest{
		SessionID: sessionID,
		EventType: "device_detected",
		Details:   "cell phone detected (0.91)",
	}, &resp)
	if code != http.StatusOK {
		t.Fatalf("report-event returned %d", code)
	}
	if len(resp.Events) != 1 || resp.Events[0].Score != 0.5 {
		t.Fatalf("configured score not applied: %+v", resp.Events)
	}

	var log api.EventListResponse
	if code := getJSON(t, d, fmt.Sprintf("/api/sessions/%d/events", sessionID), &log); code != http.StatusOK {
		t.Fatalf("session events returned %d", code)
	}
	if len(log.Events) != 1 || log.Events[0].Type != "device_detected" {
		t.Fatalf("unexpected event log: %+v", log.Events)
	}
}

func TestDashboardAndStatus(t *testing.T) {
	d := startDaemon(t)
	_, sessionID := registerAndStart(t, d)

	postJSON(t, d, "/api/report-event", api.ReportEventRequest{SessionID: sessionID, EventType: "gaze_offscreen"}, nil)

	var list api.SessionListResponse
	if code := getJSON(t, d, "/api/sessions", &list); code != http.StatusOK {
		t.Fatalf("sessions returned %d", code)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Session.Verdict != "suspicious" {
		t.Fatalf("unexpected dashboard: %+v", list.Sessions)
	}
	if list.Stats.TotalCandidates != 1 || list.Stats.ActiveSessions != 1 {
		t.Fatalf("unexpected stats: %+v", list.Stats)
	}
	if list.Sessions[0].CandidateName != "Asha Rao" {
		t.Fatalf("snapshot missing candidate name: %+v", list.Sessions[0])
	}

	var status api.StatusResponse
	if code := getJSON(t, d, "/api/status", &status); code != http.StatusOK {
		t.Fatalf("status returned %d", code)
	}
	if !status.Running || status.DBPath == "" || status.Pool.Workers == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSessionEndIsIdempotentOverAPI(t *testing.T) {
	d := startDaemon(t)
	_, sessionID := registerAndStart(t, d)

	for i := 0; i < 2; i++ {
		var resp api.SessionResponse
		if code := postJSON(t, d, "/api/session/end", api.SessionEndRequest{SessionID: sessionID}, &resp); code != http.StatusOK {
			t.Fatalf("session/end %d returned %d", i, code)
		}
		if resp.Session.Active {
			t.Fatalf("session still active after end: %+v", resp.Session)
		}
	}
}
