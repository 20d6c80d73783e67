// Package evidence stores the media blobs backing recorded events.
//
// Blobs are written under the configured evidence directory, grouped per
// session and named with a random UUID so client-supplied names never touch
// the filesystem. Paths persisted in the database are relative to the
// evidence root.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// Vault writes and resolves evidence blobs.
type Vault struct {
	root string
}

// NewVault creates a vault rooted at dir.
func NewVault(dir string) (*Vault, error) {
	if dir == "" {
		return nil, fmt.Errorf("evidence: root directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: ensure root: %w", err)
	}
	return &Vault{root: dir}, nil
}

// Root returns the vault's base directory.
func (v *Vault) Root() string {
	return v.root
}

// SaveFrame persists a frame capture for a session and returns the relative
// path to record against the event.
func (v *Vault) SaveFrame(sessionID int64, data []byte, format string) (string, error) {
	if format == "" {
		format = "img"
	}
	return v.save(sessionID, "frames", data, format)
}

// SaveAudio persists an audio chunk for a session.
func (v *Vault) SaveAudio(sessionID int64, data []byte) (string, error) {
	return v.save(sessionID, "audio", data, "wav")
}

func (v *Vault) save(sessionID int64, kind string, data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("evidence: empty payload")
	}
	relDir := filepath.Join(strconv.FormatInt(sessionID, 10), kind)
	if err := os.MkdirAll(filepath.Join(v.root, relDir), 0o755); err != nil {
		return "", fmt.Errorf("evidence: ensure session dir: %w", err)
	}
	rel := filepath.Join(relDir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(filepath.Join(v.root, rel), data, 0o644); err != nil {
		return "", fmt.Errorf("evidence: write blob: %w", err)
	}
	return rel, nil
}

// Resolve converts a stored relative path into an absolute one.
func (v *Vault) Resolve(rel string) string {
	return filepath.Join(v.root, rel)
}
