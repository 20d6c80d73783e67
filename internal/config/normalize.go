package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDetection()
	c.normalizeAudio()
	c.normalizePolicy()
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EvidenceDir) == "" {
		c.Paths.EvidenceDir = defaultEvidenceDir
	}
	if c.Paths.EvidenceDir, err = expandPath(c.Paths.EvidenceDir); err != nil {
		return fmt.Errorf("paths.evidence_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDetection() {
	labels := make([]string, 0, len(c.Detection.GadgetLabels))
	seen := make(map[string]struct{}, len(c.Detection.GadgetLabels))
	for _, label := range c.Detection.GadgetLabels {
		cleaned := strings.ToLower(strings.TrimSpace(label))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		labels = append(labels, cleaned)
	}
	if len(labels) == 0 {
		labels = append([]string(nil), defaultGadgetLabels...)
	}
	c.Detection.GadgetLabels = labels

	c.Detection.FaceToolBinary = strings.TrimSpace(c.Detection.FaceToolBinary)
	if c.Detection.FaceToolBinary == "" {
		c.Detection.FaceToolBinary = defaultFaceToolBinary
	}
	c.Detection.ObjectToolBinary = strings.TrimSpace(c.Detection.ObjectToolBinary)
	if c.Detection.ObjectToolBinary == "" {
		c.Detection.ObjectToolBinary = defaultObjectToolBinary
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultAudioSampleRate
	}
	if c.Audio.ExcerptRunes <= 0 {
		c.Audio.ExcerptRunes = defaultAudioExcerptRunes
	}
	c.Audio.TranscriberBinary = strings.TrimSpace(c.Audio.TranscriberBinary)
	if c.Audio.TranscriberBinary == "" {
		c.Audio.TranscriberBinary = defaultTranscriberBinary
	}
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizePolicy() {
	c.Policy.Mode = strings.ToLower(strings.TrimSpace(c.Policy.Mode))
	if c.Policy.Mode == "" {
		c.Policy.Mode = defaultPolicyMode
	}
	if c.Policy.Threshold <= 0 {
		c.Policy.Threshold = defaultPolicyThreshold
	}
	c.Policy.BlockReason = strings.TrimSpace(c.Policy.BlockReason)
	if c.Policy.BlockReason == "" {
		c.Policy.BlockReason = defaultBlockReason
	}
}

func (c *Config) normalizeIngest() {
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = defaultIngestWorkers
	}
	if c.Ingest.QueueDepth <= 0 {
		c.Ingest.QueueDepth = defaultIngestQueueDepth
	}
	if c.Ingest.EnqueueTimeout <= 0 {
		c.Ingest.EnqueueTimeout = defaultIngestEnqueueTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
