package detect

import (
	"context"
	"math"

	"proctor/internal/media"
	"proctor/internal/store"
)

// Signal is one scored observation produced by an analyzer. Signals map
// one-to-one onto stored events.
type Signal struct {
	Type    store.EventType
	Details string
	Score   float64
	// Box is the face bounding box behind the signal, when one exists.
	// It is surfaced to clients for overlays and is not persisted.
	Box *Face
}

// Face is a detected face bounding box in frame pixel coordinates.
type Face struct {
	X      int
	Y      int
	Width  int
	Height int
}

// CenterX returns the horizontal center of the face box.
func (f Face) CenterX() float64 {
	return float64(f.X) + float64(f.Width)/2
}

// DetectedObject is one object recognized in a frame.
type DetectedObject struct {
	Label      string
	Confidence float64
}

// FaceLocator finds face bounding boxes in a frame.
type FaceLocator interface {
	LocateFaces(ctx context.Context, frame *media.Frame) ([]Face, error)
}

// FaceEmbedder produces a normalized face embedding for a face crop.
// Implementations return a nil embedding without error when the crop is
// unusable.
type FaceEmbedder interface {
	EmbedFace(ctx context.Context, frame *media.Frame, face Face) ([]float32, error)
}

// ObjectDetector recognizes objects in a frame.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, frame *media.Frame) ([]DetectedObject, error)
}

// Transcriber converts a WAV file on disk into plain text. An empty
// transcript with a nil error means no speech was recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// CosineSimilarity computes the cosine of the angle between two embeddings.
// Mismatched lengths or zero vectors yield zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
