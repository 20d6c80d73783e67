package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"proctor/internal/config"
	"proctor/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the analyzers shell out
// to. Every tool is optional at the process level: the frame analyzer
// degrades to face_unknown events and the audio analyzer to audio_error
// events when a tool is missing.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Face tool",
			Command:     cfg.Detection.FaceToolBinary,
			Description: "Face detection and reference embeddings",
			Optional:    true,
		},
		{
			Name:        "Object detector",
			Command:     cfg.Detection.ObjectToolBinary,
			Description: "Prohibited device detection",
			Optional:    true,
		},
		{
			Name:        "Transcriber",
			Command:     cfg.Audio.TranscriberBinary,
			Description: "Speech transcription for audio clips",
			Optional:    true,
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Audio.FFmpegBinary,
			Description: "Audio normalization to mono PCM WAV",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
