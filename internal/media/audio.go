package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyAudio reports an audio upload with no payload.
	ErrEmptyAudio = errors.New("media: empty audio payload")
	// ErrNotWAV reports a payload that is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("media: payload is not a WAV file")
)

// Clip is a decoded PCM16 audio chunk.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Duration returns the clip length derived from the sample count.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(float64(frames) / float64(c.SampleRate) * float64(time.Second))
}

// RMS computes the root-mean-square amplitude over all samples. Silence
// returns zero; typical speech against the default microphone gain lands in
// the hundreds, with loud environments rising past a few thousand.
func (c *Clip) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range c.Samples {
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(c.Samples)))
}

// ParseWAV decodes a PCM16 WAV payload. Non-PCM encodings and truncated
// containers are rejected.
func ParseWAV(data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		clip      Clip
		haveFmt   bool
		bitsPer   int
		audioFmt  int
		dataChunk []byte
	)
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, chunkID)
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			audioFmt = int(binary.LittleEndian.Uint16(data[body : body+2]))
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPer = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			dataChunk = data[body : body+chunkSize]
		}
		// Chunks are word-aligned.
		offset = body + chunkSize + chunkSize%2
	}

	if !haveFmt || dataChunk == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	if audioFmt != 1 || bitsPer != 16 {
		return nil, fmt.Errorf("media: unsupported WAV encoding (format %d, %d-bit)", audioFmt, bitsPer)
	}
	if clip.Channels <= 0 || clip.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid fmt values", ErrNotWAV)
	}

	clip.Samples = make([]int16, len(dataChunk)/2)
	for i := range clip.Samples {
		clip.Samples[i] = int16(binary.LittleEndian.Uint16(dataChunk[2*i : 2*i+2]))
	}
	return &clip, nil
}
