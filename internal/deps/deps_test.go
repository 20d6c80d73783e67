package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "facetool")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	reqs := []Requirement{
		{Name: "Face tool", Command: present},
		{Name: "Object detector", Command: "definitely-not-installed-objdetect", Optional: true},
		{Name: "Transcriber", Command: ""},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected stub binary to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available binary: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
	if !results[1].Optional {
		t.Fatal("expected optional flag to carry through")
	}

	if results[2].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[2].Detail)
	}
}
