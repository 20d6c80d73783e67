package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runConfigInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"config", "init"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runConfigInit(t, "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output missing target path:\n%s", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing paths section:\n%s", data)
	}
}

func TestConfigInitRefusesExistingFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if _, err := runConfigInit(t, "--path", target); err == nil {
		t.Fatal("expected refusal without --overwrite")
	}

	if _, err := runConfigInit(t, "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if strings.Contains(string(data), "# existing") {
		t.Fatal("overwrite left the old file in place")
	}
}
