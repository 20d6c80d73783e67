package evidence_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"proctor/internal/evidence"
)

func TestSaveFrameAndResolve(t *testing.T) {
	vault, err := evidence.NewVault(filepath.Join(t.TempDir(), "evidence"))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	rel, err := vault.SaveFrame(42, []byte{0x89, 0x50, 0x4e, 0x47}, "png")
	if err != nil {
		t.Fatalf("SaveFrame: %v", err)
	}
	if !strings.HasPrefix(rel, filepath.Join("42", "frames")) || !strings.HasSuffix(rel, ".png") {
		t.Fatalf("unexpected relative path %q", rel)
	}
	data, err := os.ReadFile(vault.Resolve(rel))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("blob corrupted: %v", data)
	}
}

func TestSaveAudio(t *testing.T) {
	vault, err := evidence.NewVault(filepath.Join(t.TempDir(), "evidence"))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	rel, err := vault.SaveAudio(7, []byte("RIFF"))
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	if !strings.HasSuffix(rel, ".wav") {
		t.Fatalf("unexpected path %q", rel)
	}
}

func TestSaveRejectsEmptyPayload(t *testing.T) {
	vault, err := evidence.NewVault(filepath.Join(t.TempDir(), "evidence"))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	if _, err := vault.SaveFrame(1, nil, "png"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
