package detect_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"proctor/internal/config"
	"proctor/internal/detect"
	"proctor/internal/media"
	"proctor/internal/store"
)

type stubLocator struct {
	faces []detect.Face
	err   error
}

func (s stubLocator) LocateFaces(context.Context, *media.Frame) ([]detect.Face, error) {
	return s.faces, s.err
}

type stubEmbedder struct {
	embedding []float32
	err       error
}

func (s stubEmbedder) EmbedFace(context.Context, *media.Frame, detect.Face) ([]float32, error) {
	return s.embedding, s.err
}

type stubObjects struct {
	objects []detect.DetectedObject
	err     error
}

func (s stubObjects) DetectObjects(context.Context, *media.Frame) ([]detect.DetectedObject, error) {
	return s.objects, s.err
}

func testFrame() *media.Frame {
	return &media.Frame{Width: 640, Height: 480}
}

func frameConfig() config.Detection {
	cfg := config.Default()
	return cfg.Detection
}

func signalTypes(signals []detect.Signal) []store.EventType {
	types := make([]store.EventType, len(signals))
	for i, signal := range signals {
		types[i] = signal.Type
	}
	return types
}

func hasType(signals []detect.Signal, want store.EventType) bool {
	for _, signal := range signals {
		if signal.Type == want {
			return true
		}
	}
	return false
}

func TestAnalyzeFrameNoFace(t *testing.T) {
	analyzer := detect.NewFrameAnalyzer(frameConfig(), stubLocator{}, stubEmbedder{}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), nil)
	if len(signals) != 1 || signals[0].Type != store.EventNoFace {
		t.Fatalf("expected single no_face signal, got %v", signalTypes(signals))
	}
	if signals[0].Score != 0.2 || signals[0].Details != "No face detected" {
		t.Fatalf("unexpected no_face signal: %+v", signals[0])
	}
}

func TestAnalyzeFrameLocatorFailureDegrades(t *testing.T) {
	analyzer := detect.NewFrameAnalyzer(frameConfig(), stubLocator{err: errors.New("cascade missing")}, stubEmbedder{}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), nil)
	if len(signals) != 1 || signals[0].Type != store.EventFaceUnknown {
		t.Fatalf("locator failure should degrade to face_unknown, got %v", signalTypes(signals))
	}
}

func TestAnalyzeFrameMultipleFaces(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{
		{X: 100, Y: 100, Width: 60, Height: 60},
		{X: 300, Y: 100, Width: 120, Height: 120},
	}}
	reference := []float32{1, 0, 0}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), reference)
	if !hasType(signals, store.EventMultiFace) {
		t.Fatalf("expected multi_face signal, got %v", signalTypes(signals))
	}
	for _, signal := range signals {
		if signal.Type != store.EventMultiFace {
			continue
		}
		if signal.Details != "2 faces detected" {
			t.Fatalf("unexpected multi_face details %q", signal.Details)
		}
		// Box carries the primary (largest) face.
		if signal.Box == nil || signal.Box.Width != 120 {
			t.Fatalf("expected primary face box, got %+v", signal.Box)
		}
	}
}

func TestAnalyzeFrameFaceMismatch(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	// Orthogonal to the reference: similarity 0.
	embedder := stubEmbedder{embedding: []float32{0, 1, 0}}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, embedder, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), []float32{1, 0, 0})
	if len(signals) != 1 || signals[0].Type != store.EventFaceMismatch {
		t.Fatalf("expected face_mismatch, got %v", signalTypes(signals))
	}
	if signals[0].Details != "sim=0.00" || signals[0].Score != 0.8 {
		t.Fatalf("unexpected mismatch signal: %+v", signals[0])
	}
}

func TestAnalyzeFrameMismatchDetailsCarrySimilarity(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	// Unit vector at cosine 0.4 against the reference axis.
	embedder := stubEmbedder{embedding: []float32{0.4, 0.9165151, 0}}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, embedder, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), []float32{1, 0, 0})
	if len(signals) != 1 || signals[0].Type != store.EventFaceMismatch {
		t.Fatalf("expected face_mismatch, got %v", signalTypes(signals))
	}
	if !strings.Contains(signals[0].Details, "0.40") {
		t.Fatalf("expected similarity in details, got %q", signals[0].Details)
	}
}

func TestAnalyzeFrameMissingReferenceDegrades(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: []float32{1, 0, 0}}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), nil)
	if len(signals) != 1 || signals[0].Type != store.EventFaceUnknown {
		t.Fatalf("unenrolled candidate should degrade to face_unknown, got %v", signalTypes(signals))
	}
	if signals[0].Score != 0.2 || signals[0].Details != "no reference embedding" {
		t.Fatalf("unexpected face_unknown signal: %+v", signals[0])
	}
}

func TestAnalyzeFrameMatchingFaceIsClean(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	reference := []float32{0.5, 0.5, 0.1}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), reference)
	if len(signals) != 0 {
		t.Fatalf("matching centered face should raise nothing, got %v", signalTypes(signals))
	}
}

func TestAnalyzeFrameUnknownFaceWithoutEmbedding(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{err: errors.New("model crashed")}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), []float32{1, 0, 0})
	if len(signals) != 1 || signals[0].Type != store.EventFaceUnknown {
		t.Fatalf("expected face_unknown, got %v", signalTypes(signals))
	}
	if signals[0].Details != "embedding failed" {
		t.Fatalf("unexpected details %q", signals[0].Details)
	}
}

func TestAnalyzeFrameGazeOffscreen(t *testing.T) {
	// Face center at x=30 on a 640px frame, inside the 15% margin.
	locator := stubLocator{faces: []detect.Face{{X: 0, Y: 100, Width: 60, Height: 60}}}
	reference := []float32{1, 0}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), reference)
	if !hasType(signals, store.EventGazeOffscreen) {
		t.Fatalf("expected gaze_offscreen, got %v", signalTypes(signals))
	}
}

func TestAnalyzeFrameGazeUsesPrimaryFace(t *testing.T) {
	// Larger face is centered; the off-edge one is smaller and ignored.
	locator := stubLocator{faces: []detect.Face{
		{X: 0, Y: 100, Width: 40, Height: 40},
		{X: 240, Y: 80, Width: 160, Height: 160},
	}}
	reference := []float32{1, 0}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, nil, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), reference)
	if hasType(signals, store.EventGazeOffscreen) {
		t.Fatalf("gaze must follow the primary face, got %v", signalTypes(signals))
	}
}

func TestAnalyzeFrameDeviceDetection(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	reference := []float32{1, 0}
	objects := stubObjects{objects: []detect.DetectedObject{
		{Label: "Cell Phone", Confidence: 0.91},
		{Label: "chair", Confidence: 0.99},
		{Label: "laptop", Confidence: 0.05},
	}}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, objects, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), reference)
	var devices []detect.Signal
	for _, signal := range signals {
		if signal.Type == store.EventDeviceDetected {
			devices = append(devices, signal)
		}
	}
	if len(devices) != 1 {
		t.Fatalf("expected one device signal (label match above confidence), got %v", signalTypes(signals))
	}
	if !strings.HasPrefix(devices[0].Details, "cell phone detected") {
		t.Fatalf("unexpected device details %q", devices[0].Details)
	}
}

func TestAnalyzeFrameObjectDetectorFailureSkipsDevicePass(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	reference := []float32{1, 0}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, stubObjects{err: errors.New("weights missing")}, nil)

	signals := analyzer.AnalyzeFrame(context.Background(), testFrame(), reference)
	if len(signals) != 0 {
		t.Fatalf("object detector failure must be silent, got %v", signalTypes(signals))
	}
}

func TestVerifyFace(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	reference := []float32{1, 0, 0}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: reference}, nil, nil)

	verified, sim, err := analyzer.VerifyFace(context.Background(), testFrame(), reference)
	if err != nil {
		t.Fatalf("VerifyFace: %v", err)
	}
	if !verified || sim < 0.99 {
		t.Fatalf("identical embedding should verify, got verified=%v sim=%v", verified, sim)
	}

	mismatched := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: []float32{0, 1, 0}}, nil, nil)
	verified, sim, err = mismatched.VerifyFace(context.Background(), testFrame(), reference)
	if err != nil {
		t.Fatalf("VerifyFace mismatch: %v", err)
	}
	if verified || sim > 0.01 {
		t.Fatalf("orthogonal embedding should not verify, got verified=%v sim=%v", verified, sim)
	}

	none := detect.NewFrameAnalyzer(frameConfig(), stubLocator{}, stubEmbedder{}, nil, nil)
	if _, _, err := none.VerifyFace(context.Background(), testFrame(), reference); err == nil {
		t.Fatal("expected error when no face is present")
	}
}

func TestEnroll(t *testing.T) {
	locator := stubLocator{faces: []detect.Face{{X: 260, Y: 100, Width: 120, Height: 120}}}
	analyzer := detect.NewFrameAnalyzer(frameConfig(), locator, stubEmbedder{embedding: []float32{1, 0}}, nil, nil)

	embedding, err := analyzer.Enroll(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if len(embedding) != 2 {
		t.Fatalf("unexpected embedding %v", embedding)
	}

	empty := detect.NewFrameAnalyzer(frameConfig(), stubLocator{}, stubEmbedder{}, nil, nil)
	if _, err := empty.Enroll(context.Background(), testFrame()); err == nil {
		t.Fatal("enrollment without a face must fail")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if sim := detect.CosineSimilarity([]float32{1, 0}, []float32{1, 0}); sim < 0.999 {
		t.Fatalf("identical vectors sim %v", sim)
	}
	if sim := detect.CosineSimilarity([]float32{1, 0}, []float32{0, 1}); sim != 0 {
		t.Fatalf("orthogonal vectors sim %v", sim)
	}
	if sim := detect.CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); sim != 0 {
		t.Fatalf("length mismatch sim %v", sim)
	}
	if sim := detect.CosineSimilarity(nil, nil); sim != 0 {
		t.Fatalf("nil vectors sim %v", sim)
	}
}
