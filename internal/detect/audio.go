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

// AudioAnalyzer inspects microphone chunks for speech and loud noise.
//
// Backend failures do not abort analysis: they degrade into an audio_error
// signal so the session record shows monitoring gaps instead of silently
// losing them.
type AudioAnalyzer struct {
	transcriber Transcriber
	cfg         config.Audio
	logger      *slog.Logger
}

// NewAudioAnalyzer builds an audio analyzer. The transcriber may be nil, in
// which case speech detection is skipped.
func NewAudioAnalyzer(cfg config.Audio, transcriber Transcriber, logger *slog.Logger) *AudioAnalyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AudioAnalyzer{
		transcriber: transcriber,
		cfg:         cfg,
		logger:      logger.With(logging.String(logging.FieldComponent, "audio-analyzer")),
	}
}

// AnalyzeAudio evaluates a decoded clip. wavPath points at the normalized
// mono WAV on disk that the transcriber consumes.
func (a *AudioAnalyzer) AnalyzeAudio(ctx context.Context, clip *media.Clip, wavPath string) []Signal {
	var signals []Signal

	if rms := clip.RMS(); rms > a.cfg.RMSThreshold {
		signals = append(signals, Signal{
			Type:    store.EventAudioNoise,
			Details: fmt.Sprintf("Loud noise detected (RMS=%.0f)", rms),
			Score:   a.cfg.NoiseScore,
		})
	}

	if a.transcriber == nil {
		return signals
	}
	transcript, err := a.transcriber.Transcribe(ctx, wavPath)
	if err != nil {
		a.logger.Warn("transcription failed", logging.Error(err))
		signals = append(signals, Signal{
			Type:    store.EventAudioError,
			Details: fmt.Sprintf("Audio processing failed: %v", err),
			Score:   a.cfg.ErrorScore,
		})
		return signals
	}
	if transcript = strings.TrimSpace(transcript); transcript != "" {
		signals = append(signals, Signal{
			Type:    store.EventAudioOthers,
			Details: fmt.Sprintf("Speech detected: %s", excerpt(transcript, a.cfg.ExcerptRunes)),
			Score:   a.cfg.SpeechScore,
		})
	}
	return signals
}

func excerpt(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
