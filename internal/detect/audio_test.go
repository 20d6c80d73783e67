package detect_test

import (
	"context"
	"errors"
	"testing"

	"proctor/internal/config"
	"proctor/internal/detect"
	"proctor/internal/media"
	"proctor/internal/store"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(context.Context, string) (string, error) {
	return s.text, s.err
}

func audioConfig() config.Audio {
	cfg := config.Default()
	return cfg.Audio
}

func clipWithAmplitude(amplitude int16, n int) *media.Clip {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return &media.Clip{SampleRate: 16000, Channels: 1, Samples: samples}
}

func TestAnalyzeAudioQuietAndSilent(t *testing.T) {
	analyzer := detect.NewAudioAnalyzer(audioConfig(), stubTranscriber{}, nil)

	signals := analyzer.AnalyzeAudio(context.Background(), clipWithAmplitude(200, 16000), "clip.wav")
	if len(signals) != 0 {
		t.Fatalf("quiet silent clip should raise nothing, got %v", signalTypes(signals))
	}
}

func TestAnalyzeAudioSpeech(t *testing.T) {
	analyzer := detect.NewAudioAnalyzer(audioConfig(), stubTranscriber{text: "can you tell me the answer to question four please"}, nil)

	signals := analyzer.AnalyzeAudio(context.Background(), clipWithAmplitude(200, 16000), "clip.wav")
	if len(signals) != 1 || signals[0].Type != store.EventAudioOthers {
		t.Fatalf("expected audio_others, got %v", signalTypes(signals))
	}
	if signals[0].Details != "Speech detected: can you tell me the answer to question four please" {
		t.Fatalf("unexpected details %q", signals[0].Details)
	}
	if signals[0].Score != 0.5 {
		t.Fatalf("unexpected score %v", signals[0].Score)
	}
}

func TestAnalyzeAudioExcerptTruncation(t *testing.T) {
	long := "zero one two three four five six seven eight nine ten eleven twelve"
	analyzer := detect.NewAudioAnalyzer(audioConfig(), stubTranscriber{text: long}, nil)

	signals := analyzer.AnalyzeAudio(context.Background(), clipWithAmplitude(200, 16000), "clip.wav")
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %v", signalTypes(signals))
	}
	want := "Speech detected: " + long[:50]
	if signals[0].Details != want {
		t.Fatalf("details %q, want %q", signals[0].Details, want)
	}
}

func TestAnalyzeAudioLoudNoise(t *testing.T) {
	analyzer := detect.NewAudioAnalyzer(audioConfig(), stubTranscriber{}, nil)

	signals := analyzer.AnalyzeAudio(context.Background(), clipWithAmplitude(5000, 16000), "clip.wav")
	if len(signals) != 1 || signals[0].Type != store.EventAudioNoise {
		t.Fatalf("expected audio_noise, got %v", signalTypes(signals))
	}
	if signals[0].Details != "Loud noise detected (RMS=5000)" {
		t.Fatalf("unexpected details %q", signals[0].Details)
	}
}

func TestAnalyzeAudioTranscriberFailureDegrades(t *testing.T) {
	analyzer := detect.NewAudioAnalyzer(audioConfig(), stubTranscriber{err: errors.New("model not found")}, nil)

	signals := analyzer.AnalyzeAudio(context.Background(), clipWithAmplitude(200, 16000), "clip.wav")
	if len(signals) != 1 || signals[0].Type != store.EventAudioError {
		t.Fatalf("expected audio_error, got %v", signalTypes(signals))
	}
	if signals[0].Score != 0.2 {
		t.Fatalf("unexpected score %v", signals[0].Score)
	}
}

func TestAnalyzeAudioNoiseAndSpeechTogether(t *testing.T) {
	analyzer := detect.NewAudioAnalyzer(audioConfig(), stubTranscriber{text: "hello"}, nil)

	signals := analyzer.AnalyzeAudio(context.Background(), clipWithAmplitude(5000, 16000), "clip.wav")
	if len(signals) != 2 {
		t.Fatalf("expected noise and speech signals, got %v", signalTypes(signals))
	}
}
