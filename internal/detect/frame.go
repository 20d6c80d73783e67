package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"proctor/internal/config"
	"proctor/internal/logging"
	"proctor/internal/media"
	"proctor/internal/store"
)

// FrameAnalyzer inspects webcam frames for presence, identity, gaze, and
// prohibited-device signals.
//
// Backend failures never fail an analysis: a broken locator or embedder
// degrades to face_unknown and a broken object detector skips the device
// pass, both logged.
type FrameAnalyzer struct {
	locator  FaceLocator
	embedder FaceEmbedder
	objects  ObjectDetector
	cfg      config.Detection
	gadgets  map[string]struct{}
	logger   *slog.Logger
}

// NewFrameAnalyzer builds a frame analyzer around the provided backends.
// The object detector may be nil, in which case device detection is skipped.
func NewFrameAnalyzer(cfg config.Detection, locator FaceLocator, embedder FaceEmbedder, objects ObjectDetector, logger *slog.Logger) *FrameAnalyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	gadgets := make(map[string]struct{}, len(cfg.GadgetLabels))
	for _, label := range cfg.GadgetLabels {
		gadgets[strings.ToLower(label)] = struct{}{}
	}
	return &FrameAnalyzer{
		locator:  locator,
		embedder: embedder,
		objects:  objects,
		cfg:      cfg,
		gadgets:  gadgets,
		logger:   logger.With(logging.String(logging.FieldComponent, "frame-analyzer")),
	}
}

// AnalyzeFrame evaluates a decoded frame against the candidate's reference
// embedding and returns every signal the frame raises. Identity and gaze
// checks apply to the primary (largest) face; a missing reference embedding
// degrades the identity check to face_unknown.
func (a *FrameAnalyzer) AnalyzeFrame(ctx context.Context, frame *media.Frame, reference []float32) []Signal {
	faces, err := a.locator.LocateFaces(ctx, frame)
	if err != nil {
		a.logger.Warn("face location failed", logging.Error(err))
		return []Signal{{
			Type:    store.EventFaceUnknown,
			Details: "face detection failed",
			Score:   a.cfg.UnknownFaceScore,
		}}
	}

	var signals []Signal
	if len(faces) == 0 {
		return []Signal{{
			Type:    store.EventNoFace,
			Details: "No face detected",
			Score:   a.cfg.NoFaceScore,
		}}
	}

	primary := primaryFace(faces)
	if len(faces) > 1 {
		signals = append(signals, Signal{
			Type:    store.EventMultiFace,
			Details: fmt.Sprintf("%d faces detected", len(faces)),
			Score:   a.cfg.MultiFaceScore,
			Box:     &primary,
		})
	}

	signals = append(signals, a.identitySignals(ctx, frame, primary, reference)...)

	cx := primary.CenterX()
	margin := a.cfg.GazeMargin * float64(frame.Width)
	if cx < margin || cx > float64(frame.Width)-margin {
		signals = append(signals, Signal{
			Type:    store.EventGazeOffscreen,
			Details: "face center offscreen",
			Score:   a.cfg.GazeScore,
			Box:     &primary,
		})
	}

	if a.objects != nil {
		signals = append(signals, a.deviceSignals(ctx, frame)...)
	}
	return signals
}

func (a *FrameAnalyzer) identitySignals(ctx context.Context, frame *media.Frame, face Face, reference []float32) []Signal {
	if len(reference) == 0 {
		return []Signal{{
			Type:    store.EventFaceUnknown,
			Details: "no reference embedding",
			Score:   a.cfg.UnknownFaceScore,
			Box:     &face,
		}}
	}

	embedding, err := a.embedder.EmbedFace(ctx, frame, face)
	if err != nil {
		a.logger.Warn("face embedding failed", logging.Error(err))
		embedding = nil
	}
	if embedding == nil {
		return []Signal{{
			Type:    store.EventFaceUnknown,
			Details: "embedding failed",
			Score:   a.cfg.UnknownFaceScore,
			Box:     &face,
		}}
	}

	sim := CosineSimilarity(embedding, reference)
	if sim < a.cfg.SimilarityThreshold {
		return []Signal{{
			Type:    store.EventFaceMismatch,
			Details: fmt.Sprintf("sim=%.2f", sim),
			Score:   a.cfg.MismatchScore,
			Box:     &face,
		}}
	}
	return nil
}

func (a *FrameAnalyzer) deviceSignals(ctx context.Context, frame *media.Frame) []Signal {
	objects, err := a.objects.DetectObjects(ctx, frame)
	if err != nil {
		a.logger.Warn("object detection failed", logging.Error(err))
		return nil
	}
	var signals []Signal
	for _, object := range objects {
		label := strings.ToLower(object.Label)
		if _, prohibited := a.gadgets[label]; !prohibited {
			continue
		}
		if object.Confidence < a.cfg.ObjectConfidence {
			continue
		}
		signals = append(signals, Signal{
			Type:    store.EventDeviceDetected,
			Details: fmt.Sprintf("%s detected (%.2f)", label, object.Confidence),
			Score:   a.cfg.DeviceScore,
		})
	}
	return signals
}

// VerifyFace checks a single captured frame against the reference embedding
// and reports the similarity. It is used by the explicit verification
// endpoint rather than the passive monitoring path.
func (a *FrameAnalyzer) VerifyFace(ctx context.Context, frame *media.Frame, reference []float32) (bool, float64, error) {
	faces, err := a.locator.LocateFaces(ctx, frame)
	if err != nil {
		return false, 0, fmt.Errorf("locate faces: %w", err)
	}
	if len(faces) == 0 {
		return false, 0, fmt.Errorf("no face in frame")
	}
	embedding, err := a.embedder.EmbedFace(ctx, frame, primaryFace(faces))
	if err != nil {
		return false, 0, fmt.Errorf("embed face: %w", err)
	}
	if embedding == nil || len(reference) == 0 {
		return false, 0, nil
	}
	sim := CosineSimilarity(embedding, reference)
	return sim >= a.cfg.SimilarityThreshold, sim, nil
}

// Enroll extracts a reference embedding from an enrollment frame. Unlike
// monitoring, enrollment fails loudly when no usable face is found.
func (a *FrameAnalyzer) Enroll(ctx context.Context, frame *media.Frame) ([]float32, error) {
	faces, err := a.locator.LocateFaces(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("locate faces: %w", err)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("no face in enrollment frame")
	}
	embedding, err := a.embedder.EmbedFace(ctx, frame, primaryFace(faces))
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}
	if embedding == nil {
		return nil, fmt.Errorf("enrollment frame produced no embedding")
	}
	return embedding, nil
}

func primaryFace(faces []Face) Face {
	primary := faces[0]
	for _, face := range faces[1:] {
		if face.Width*face.Height > primary.Width*primary.Height {
			primary = face
		}
	}
	return primary
}
