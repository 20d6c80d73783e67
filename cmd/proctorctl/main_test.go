package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"proctor/internal/api"
	"proctor/internal/daemon"
	"proctor/internal/logging"
	"proctor/internal/testsupport"
)

type cliTestEnv struct {
	daemon  *daemon.Daemon
	address string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close daemon: %v", err)
		}
	})

	return &cliTestEnv{daemon: d, address: d.Addr()}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--server", env.address))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func (env *cliTestEnv) registerCandidate(t *testing.T, name, roll string) int64 {
	t.Helper()

	body, _ := json.Marshal(api.RegisterRequest{Name: name, RollNumber: roll})
	resp, err := http.Post("http://"+env.address+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()
	var payload api.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return payload.Candidate.ID
}

func TestRegisterAndSessionLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "register", "Asha Verma", "CS-101")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	requireContains(t, out, "Registered candidate")
	requireContains(t, out, "no reference face")

	out, err = runCLI(t, env, "session", "start", "1")
	if err != nil {
		t.Fatalf("session start: %v", err)
	}
	requireContains(t, out, "Session 1 started for candidate 1")

	out, err = runCLI(t, env, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, "Asha Verma")
	requireContains(t, out, "active")
	requireContains(t, out, "Active: 1")

	out, err = runCLI(t, env, "session", "end", "1")
	if err != nil {
		t.Fatalf("session end: %v", err)
	}
	requireContains(t, out, "Session 1 ended")
	requireContains(t, out, "verdict: clean")
}

func TestBlockAndUnblockCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	id := env.registerCandidate(t, "Ravi Nair", "EE-204")

	out, err := runCLI(t, env, "block", fmt.Sprint(id), "--reason", "Confirmed impersonation")
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Candidate %d blocked", id))

	if _, err := runCLI(t, env, "session", "start", fmt.Sprint(id)); err == nil {
		t.Fatal("expected session start to fail for blocked candidate")
	}

	out, err = runCLI(t, env, "unblock", fmt.Sprint(id))
	if err != nil {
		t.Fatalf("unblock: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Candidate %d unblocked", id))

	if _, err := runCLI(t, env, "session", "start", fmt.Sprint(id)); err != nil {
		t.Fatalf("session start after unblock: %v", err)
	}
}

func TestEventsCommandShowsRecordedEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	id := env.registerCandidate(t, "Meera Iyer", "ME-330")

	if _, err := runCLI(t, env, "session", "start", fmt.Sprint(id)); err != nil {
		t.Fatalf("session start: %v", err)
	}
	body, _ := json.Marshal(api.UploadFrameRequest{SessionID: 1, TabSwitch: true})
	resp, err := http.Post("http://"+env.address+"/api/upload-frame", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("upload frame: %v", err)
	}
	resp.Body.Close()

	out, err := runCLI(t, env, "events", "1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "tab_switch")
	requireContains(t, out, "User switched tab or minimized window")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running:      true")
	requireContains(t, out, "Pool:")
}

func TestInvalidArguments(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env, "events", "nope"); err == nil {
		t.Fatal("expected invalid session id error")
	}
	if _, err := runCLI(t, env, "block", "abc"); err == nil {
		t.Fatal("expected invalid candidate id error")
	}
}
