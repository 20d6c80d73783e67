package testsupport

import (
	"context"
	"testing"

	"proctor/internal/config"
	"proctor/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession creates a candidate together with an open session for tests.
func NewSession(t testing.TB, st *store.Store, name, rollNumber string) *store.Session {
	t.Helper()

	candidate, err := st.CreateCandidate(context.Background(), name, rollNumber, nil)
	if err != nil {
		t.Fatalf("store.CreateCandidate: %v", err)
	}
	session, err := st.StartSession(context.Background(), candidate.ID)
	if err != nil {
		t.Fatalf("store.StartSession: %v", err)
	}
	return session
}
