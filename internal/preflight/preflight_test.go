package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"proctor/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected writable temp dir to pass: %#v", result)
	}

	result = CheckDirectoryAccess("Data directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected missing directory to fail")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = CheckDirectoryAccess("Data directory", file)
	if result.Passed {
		t.Fatal("expected plain file to fail")
	}
}

func TestRunAllCoversDirectoriesAndBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 checks, got %d: %#v", len(results), results)
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("expected all checks to pass with stubbed binaries: %#v", result)
		}
	}
}

func TestRunAllReportsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Detection.FaceToolBinary = filepath.Join(t.TempDir(), "absent-facetool")

	var found bool
	for _, result := range RunAll(cfg) {
		if result.Name == "Face tool" {
			found = true
			if result.Passed {
				t.Fatalf("expected missing face tool to fail: %#v", result)
			}
		}
	}
	if !found {
		t.Fatal("face tool check missing from results")
	}
}
