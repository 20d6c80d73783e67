package speech_test

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"proctor/internal/detect/speech"
	"proctor/internal/testsupport"
)

func TestNormalizeBuildsResampleCommand(t *testing.T) {
	svc := speech.NewService("whisper-cli", "ffmpeg", 16000)
	var gotArgs []string
	svc.WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return nil, nil
	})

	source := filepath.Join(t.TempDir(), "chunk.webm")
	testsupport.WriteFile(t, source, []byte("audio"))

	dest, err := svc.Normalize(context.Background(), source)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !strings.HasSuffix(dest, ".wav") {
		t.Fatalf("unexpected dest %q", dest)
	}
	if gotArgs[0] != "ffmpeg" {
		t.Fatalf("unexpected binary %q", gotArgs[0])
	}
	for _, want := range [][2]string{{"-ac", "1"}, {"-ar", "16000"}, {"-i", source}} {
		idx := slices.Index(gotArgs, want[0])
		if idx < 0 || gotArgs[idx+1] != want[1] {
			t.Fatalf("missing %v in args %v", want, gotArgs)
		}
	}
}

func TestTranscribeTopLevelText(t *testing.T) {
	svc := speech.NewService("", "", 16000)
	svc.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"text":" hello there "}`), nil
	})

	wavPath := filepath.Join(t.TempDir(), "chunk.wav")
	testsupport.WriteFile(t, wavPath, testsupport.WAVBytes(t, make([]int16, 160), 16000))

	text, err := svc.Transcribe(context.Background(), wavPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("transcript %q", text)
	}
}

func TestTranscribeJoinsSegments(t *testing.T) {
	svc := speech.NewService("", "", 16000)
	svc.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"segments":[{"text":" one "},{"text":""},{"text":"two"}]}`), nil
	})

	wavPath := filepath.Join(t.TempDir(), "chunk.wav")
	testsupport.WriteFile(t, wavPath, testsupport.WAVBytes(t, make([]int16, 160), 16000))

	text, err := svc.Transcribe(context.Background(), wavPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "one two" {
		t.Fatalf("transcript %q", text)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	svc := speech.NewService("", "", 16000)
	svc.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("runner must not be invoked for missing files")
		return nil, nil
	})

	if _, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
