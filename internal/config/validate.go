package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validatePolicy(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.SimilarityThreshold < 0 || c.Detection.SimilarityThreshold > 1 {
		return errors.New("detection.similarity_threshold must be between 0 and 1")
	}
	if c.Detection.GazeMargin < 0 || c.Detection.GazeMargin >= 0.5 {
		return errors.New("detection.gaze_margin must be in [0, 0.5)")
	}
	if c.Detection.ObjectConfidence < 0 || c.Detection.ObjectConfidence > 1 {
		return errors.New("detection.object_confidence must be between 0 and 1")
	}
	for name, score := range map[string]float64{
		"detection.no_face_score":      c.Detection.NoFaceScore,
		"detection.multi_face_score":   c.Detection.MultiFaceScore,
		"detection.mismatch_score":     c.Detection.MismatchScore,
		"detection.unknown_face_score": c.Detection.UnknownFaceScore,
		"detection.gaze_score":         c.Detection.GazeScore,
		"detection.device_score":       c.Detection.DeviceScore,
		"detection.tab_switch_score":   c.Detection.TabSwitchScore,
	} {
		if score < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.RMSThreshold < 0 {
		return errors.New("audio.rms_threshold must not be negative")
	}
	for name, score := range map[string]float64{
		"audio.speech_score": c.Audio.SpeechScore,
		"audio.noise_score":  c.Audio.NoiseScore,
		"audio.error_score":  c.Audio.ErrorScore,
	} {
		if score < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validatePolicy() error {
	switch c.Policy.Mode {
	case PolicyModeCount, PolicyModeScore:
	default:
		return fmt.Errorf("policy.mode must be %q or %q, got %q", PolicyModeCount, PolicyModeScore, c.Policy.Mode)
	}
	if c.Policy.Threshold <= 0 {
		return errors.New("policy.threshold must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
