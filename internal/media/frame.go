package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// ErrEmptyFrame reports a frame upload with no payload.
var ErrEmptyFrame = errors.New("media: empty frame payload")

// Frame is a decoded webcam capture.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// EncodeBase64 encodes raw image bytes the way clients post them.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFrame decodes a base64-encoded image, tolerating an optional data
// URL prefix ("data:image/jpeg;base64,...").
func DecodeFrame(encoded string) (*Frame, error) {
	encoded = strings.TrimSpace(encoded)
	if idx := strings.IndexByte(encoded, ','); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	if encoded == "" {
		return nil, ErrEmptyFrame
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("media: decode base64 frame: %w", err)
	}
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("media: decode image: %w", err)
	}
	return &Frame{
		Data:   data,
		Width:  config.Width,
		Height: config.Height,
		Format: format,
	}, nil
}
