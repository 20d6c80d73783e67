package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	EvidenceDir string `toml:"evidence_dir"`
	APIBind     string `toml:"api_bind"`
}

// Detection contains thresholds and scores for frame analysis.
type Detection struct {
	// SimilarityThreshold is the cosine similarity below which a face is
	// considered a mismatch against the candidate's reference embedding.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	// GazeMargin is the fraction of frame width on either edge within which
	// a face center counts as looking off screen.
	GazeMargin float64 `toml:"gaze_margin"`
	// GadgetLabels lists object-detector labels treated as prohibited devices.
	GadgetLabels []string `toml:"gadget_labels"`

	// Per-type event scores.
	NoFaceScore       float64 `toml:"no_face_score"`
	MultiFaceScore    float64 `toml:"multi_face_score"`
	MismatchScore     float64 `toml:"mismatch_score"`
	UnknownFaceScore  float64 `toml:"unknown_face_score"`
	GazeScore         float64 `toml:"gaze_score"`
	DeviceScore       float64 `toml:"device_score"`
	TabSwitchScore    float64 `toml:"tab_switch_score"`
	FaceToolBinary    string  `toml:"facetool_binary"`
	ObjectToolBinary  string  `toml:"objdetect_binary"`
	ObjectConfidence  float64 `toml:"object_confidence"`
}

// Audio contains configuration for audio clip analysis.
type Audio struct {
	SampleRate        int     `toml:"sample_rate"`
	RMSThreshold      float64 `toml:"rms_threshold"`
	ExcerptRunes      int     `toml:"excerpt_runes"`
	SpeechScore       float64 `toml:"speech_score"`
	NoiseScore        float64 `toml:"noise_score"`
	ErrorScore        float64 `toml:"error_score"`
	TranscriberBinary string  `toml:"transcriber_binary"`
	FFmpegBinary      string  `toml:"ffmpeg_binary"`
}

// Policy contains the blocking policy configuration.
type Policy struct {
	// Mode selects the threshold semantics: "count" blocks when the number
	// of suspicious-typed events reaches Threshold; "score" blocks when the
	// summed event score reaches Threshold.
	Mode        string  `toml:"mode"`
	Threshold   float64 `toml:"threshold"`
	BlockReason string  `toml:"block_reason"`
}

// Ingest contains worker pool sizing for detector dispatch.
type Ingest struct {
	Workers        int `toml:"workers"`
	QueueDepth     int `toml:"queue_depth"`
	EnqueueTimeout int `toml:"enqueue_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the proctoring daemon.
//
// Configuration sections by subsystem:
//   - Paths: data/log/evidence directories and API bind address
//   - Detection: frame analysis thresholds, scores, and detector binaries
//   - Audio: audio analysis thresholds and transcriber binary
//   - Policy: blocking threshold semantics
//   - Ingest: detector worker pool sizing
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Detection Detection `toml:"detection"`
	Audio     Audio     `toml:"audio"`
	Policy    Policy    `toml:"policy"`
	Ingest    Ingest    `toml:"ingest"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/proctor/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("proctor.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.EvidenceDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "proctor.db")
}

// LockFilePath returns the location of the daemon singleton lock file.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "proctord.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
