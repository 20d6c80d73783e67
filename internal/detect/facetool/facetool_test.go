package facetool_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"proctor/internal/detect"
	"proctor/internal/detect/facetool"
	"proctor/internal/media"
	"proctor/internal/testsupport"
)

func testFrame(t *testing.T) *media.Frame {
	t.Helper()
	return &media.Frame{Data: testsupport.PNGBytes(t, 64, 48), Width: 64, Height: 48, Format: "png"}
}

func TestLocateFaces(t *testing.T) {
	svc := facetool.NewService("facetool", t.TempDir())
	var gotArgs []string
	svc.WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		imagePath := args[len(args)-1]
		if _, err := os.Stat(imagePath); err != nil {
			t.Errorf("image not written before tool run: %v", err)
		}
		return []byte(`{"faces":[{"x":10,"y":20,"w":100,"h":110}]}`), nil
	})

	faces, err := svc.LocateFaces(context.Background(), testFrame(t))
	if err != nil {
		t.Fatalf("LocateFaces: %v", err)
	}
	if len(faces) != 1 || faces[0] != (detect.Face{X: 10, Y: 20, Width: 100, Height: 110}) {
		t.Fatalf("unexpected faces: %+v", faces)
	}
	if gotArgs[0] != "facetool" || gotArgs[1] != "detect" {
		t.Fatalf("unexpected invocation: %v", gotArgs)
	}
}

func TestEmbedFace(t *testing.T) {
	svc := facetool.NewService("", t.TempDir())
	svc.WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"embedding":[0.5,0.5,0.1]}`), nil
	})

	embedding, err := svc.EmbedFace(context.Background(), testFrame(t), detect.Face{X: 1, Y: 2, Width: 3, Height: 4})
	if err != nil {
		t.Fatalf("EmbedFace: %v", err)
	}
	if len(embedding) != 3 || embedding[0] != 0.5 {
		t.Fatalf("unexpected embedding: %v", embedding)
	}
}

func TestEmbedFaceEmptyOutput(t *testing.T) {
	svc := facetool.NewService("", t.TempDir())
	svc.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"embedding":[]}`), nil
	})

	embedding, err := svc.EmbedFace(context.Background(), testFrame(t), detect.Face{})
	if err != nil {
		t.Fatalf("EmbedFace: %v", err)
	}
	if embedding != nil {
		t.Fatalf("expected nil embedding, got %v", embedding)
	}
}

func TestToolFailurePropagates(t *testing.T) {
	svc := facetool.NewService("", t.TempDir())
	svc.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("model checkpoint missing")
	})

	if _, err := svc.LocateFaces(context.Background(), testFrame(t)); err == nil {
		t.Fatal("expected error from failing tool")
	}
}
