// Package objdetect adapts an external object-detection CLI to
// detect.ObjectDetector. The tool accepts an image path and prints JSON
// labels with confidences on stdout.
package objdetect

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

	"proctor/internal/detect"
	"proctor/internal/media"
)

// DefaultBinary is the object detector command name resolved via PATH.
const DefaultBinary = "objdetect"

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service invokes the object detection tool.
type Service struct {
	binary     string
	workDir    string
	confidence float64
	runner     Runner
}

// NewService creates an object detector adapter. confidence is the minimum
// score passed to the tool so low-confidence boxes are filtered at source.
func NewService(binary, workDir string, confidence float64) *Service {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Service{binary: binary, workDir: workDir, confidence: confidence}
}

// WithRunner sets a custom command runner (for testing).
func (s *Service) WithRunner(runner Runner) {
	s.runner = runner
}

type payload struct {
	Objects []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
}

// DetectObjects writes the frame to disk and runs the tool over it.
func (s *Service) DetectObjects(ctx context.Context, frame *media.Frame) ([]detect.DetectedObject, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, fmt.Errorf("objdetect: empty frame")
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("objdetect: ensure work dir: %w", err)
	}
	ext := frame.Format
	if ext == "" {
		ext = "img"
	}
	imagePath := filepath.Join(s.workDir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(imagePath, frame.Data, 0o644); err != nil {
		return nil, fmt.Errorf("objdetect: write frame: %w", err)
	}
	defer os.Remove(imagePath)

	args := []string{"--json"}
	if s.confidence > 0 {
		args = append(args, "--conf", strconv.FormatFloat(s.confidence, 'f', -1, 64))
	}
	args = append(args, imagePath)

	output, err := s.run(ctx, s.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("objdetect: %w", err)
	}
	var decoded payload
	if err := json.Unmarshal(output, &decoded); err != nil {
		return nil, fmt.Errorf("objdetect: parse output: %w", err)
	}
	objects := make([]detect.DetectedObject, 0, len(decoded.Objects))
	for _, object := range decoded.Objects {
		objects = append(objects, detect.DetectedObject{
			Label:      object.Label,
			Confidence: object.Confidence,
		})
	}
	return objects, nil
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
