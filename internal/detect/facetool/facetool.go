// Package facetool adapts an external face-analysis CLI to the detect
// interfaces. The tool is expected to accept an image path and print JSON
// on stdout: `facetool detect` emits face bounding boxes, `facetool embed`
// emits a normalized embedding for one box.
package facetool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"proctor/internal/detect"
	"proctor/internal/media"
)

// DefaultBinary is the face tool command name resolved via PATH.
const DefaultBinary = "facetool"

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service invokes the face tool. It implements detect.FaceLocator and
// detect.FaceEmbedder.
type Service struct {
	binary  string
	workDir string
	runner  Runner
}

// NewService creates a face tool adapter. workDir holds the temporary
// image files handed to the external binary.
func NewService(binary, workDir string) *Service {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Service{binary: binary, workDir: workDir}
}

// WithRunner sets a custom command runner (for testing).
func (s *Service) WithRunner(runner Runner) {
	s.runner = runner
}

type detectPayload struct {
	Faces []struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"w"`
		Height int `json:"h"`
	} `json:"faces"`
}

type embedPayload struct {
	Embedding []float32 `json:"embedding"`
}

// LocateFaces writes the frame to disk and asks the tool for bounding boxes.
func (s *Service) LocateFaces(ctx context.Context, frame *media.Frame) ([]detect.Face, error) {
	imagePath, cleanup, err := s.writeFrame(frame)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	output, err := s.run(ctx, s.binary, "detect", "--json", imagePath)
	if err != nil {
		return nil, fmt.Errorf("facetool detect: %w", err)
	}
	var payload detectPayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil, fmt.Errorf("facetool detect: parse output: %w", err)
	}
	faces := make([]detect.Face, 0, len(payload.Faces))
	for _, face := range payload.Faces {
		faces = append(faces, detect.Face{X: face.X, Y: face.Y, Width: face.Width, Height: face.Height})
	}
	return faces, nil
}

// EmbedFace asks the tool for an embedding over the given face box. A tool
// run that succeeds but produces no embedding yields (nil, nil).
func (s *Service) EmbedFace(ctx context.Context, frame *media.Frame, face detect.Face) ([]float32, error) {
	imagePath, cleanup, err := s.writeFrame(frame)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	box := fmt.Sprintf("%d,%d,%d,%d", face.X, face.Y, face.Width, face.Height)
	output, err := s.run(ctx, s.binary, "embed", "--json", "--box", box, imagePath)
	if err != nil {
		return nil, fmt.Errorf("facetool embed: %w", err)
	}
	var payload embedPayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil, fmt.Errorf("facetool embed: parse output: %w", err)
	}
	if len(payload.Embedding) == 0 {
		return nil, nil
	}
	return payload.Embedding, nil
}

func (s *Service) writeFrame(frame *media.Frame) (string, func(), error) {
	if frame == nil || len(frame.Data) == 0 {
		return "", nil, fmt.Errorf("facetool: empty frame")
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("facetool: ensure work dir: %w", err)
	}
	ext := frame.Format
	if ext == "" {
		ext = "img"
	}
	path := filepath.Join(s.workDir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		return "", nil, fmt.Errorf("facetool: write frame: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
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
