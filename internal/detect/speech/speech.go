// Package speech adapts an external speech-to-text CLI to
// detect.Transcriber, with an ffmpeg normalization step that converts
// arbitrary client audio into the mono 16kHz WAV the recognizer expects.
package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultBinary is the transcriber command name resolved via PATH.
	DefaultBinary = "whisper-cli"
	// DefaultFFmpeg is the resampler command name resolved via PATH.
	DefaultFFmpeg = "ffmpeg"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service invokes the transcriber, resampling input first.
type Service struct {
	binary     string
	ffmpeg     string
	sampleRate int
	runner     Runner
}

// NewService creates a transcriber adapter.
func NewService(binary, ffmpeg string, sampleRate int) *Service {
	if binary == "" {
		binary = DefaultBinary
	}
	if ffmpeg == "" {
		ffmpeg = DefaultFFmpeg
	}
	return &Service{binary: binary, ffmpeg: ffmpeg, sampleRate: sampleRate}
}

// WithRunner sets a custom command runner (for testing).
func (s *Service) WithRunner(runner Runner) {
	s.runner = runner
}

// Normalize converts source audio into a mono WAV at the configured sample
// rate, written next to the source. The caller owns the returned file.
func (s *Service) Normalize(ctx context.Context, source string) (string, error) {
	dest := filepath.Join(filepath.Dir(source), uuid.NewString()+".wav")
	args := buildResampleArgs(source, s.sampleRate, dest)
	if _, err := s.run(ctx, s.ffmpeg, args...); err != nil {
		return "", fmt.Errorf("speech: resample: %w", err)
	}
	return dest, nil
}

type transcriptPayload struct {
	Text     string `json:"text"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

// Transcribe runs the recognizer over a normalized WAV file and returns the
// plain transcript. An empty transcript means no speech was recognized.
func (s *Service) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if wavPath == "" {
		return "", fmt.Errorf("speech: wav path required")
	}
	if _, err := os.Stat(wavPath); err != nil {
		return "", fmt.Errorf("speech: %w", err)
	}

	output, err := s.run(ctx, s.binary, "--output-json", "--no-timestamps", "--file", wavPath)
	if err != nil {
		return "", fmt.Errorf("speech: transcribe: %w", err)
	}
	var payload transcriptPayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return "", fmt.Errorf("speech: parse transcript: %w", err)
	}
	if text := strings.TrimSpace(payload.Text); text != "" {
		return text, nil
	}
	var parts []string
	for _, segment := range payload.Segments {
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func buildResampleArgs(source string, sampleRate int, dest string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", source,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-acodec", "pcm_s16le",
		dest,
	}
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, stderr)
	}
	return output, nil
}
