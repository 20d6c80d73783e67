package config

// Policy mode values accepted by validation.
const (
	PolicyModeCount = "count"
	PolicyModeScore = "score"
)

const (
	defaultDataDir     = "~/.local/share/proctor"
	defaultLogDir      = "~/.local/share/proctor/logs"
	defaultEvidenceDir = "~/.local/share/proctor/evidence"
	defaultAPIBind     = "127.0.0.1:7831"

	defaultSimilarityThreshold = 0.6
	defaultGazeMargin          = 0.15
	defaultNoFaceScore         = 0.2
	defaultMultiFaceScore      = 0.6
	defaultMismatchScore       = 0.8
	defaultUnknownFaceScore    = 0.2
	defaultGazeScore           = 0.3
	defaultDeviceScore         = 0.5
	defaultTabSwitchScore      = 1.0
	defaultObjectConfidence    = 0.25
	defaultFaceToolBinary      = "facetool"
	defaultObjectToolBinary    = "objdetect"

	defaultAudioSampleRate    = 16000
	defaultAudioRMSThreshold  = 2000
	defaultAudioExcerptRunes  = 50
	defaultAudioSpeechScore   = 0.5
	defaultAudioNoiseScore    = 0.3
	defaultAudioErrorScore    = 0.2
	defaultTranscriberBinary  = "whisper-cli"
	defaultFFmpegBinary       = "ffmpeg"

	defaultPolicyMode      = "count"
	defaultPolicyThreshold = 3
	defaultBlockReason     = "Exceeded suspicious activity threshold"

	defaultIngestWorkers        = 2
	defaultIngestQueueDepth     = 8
	defaultIngestEnqueueTimeout = 5

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// defaultGadgetLabels mirrors the prohibited-device label set the object
// detector is expected to report.
var defaultGadgetLabels = []string{
	"cell phone", "cellphone", "mobile", "phone", "laptop", "notebook",
	"book", "keyboard", "mouse", "remote", "tv remote",
	"headphones", "earphones", "earbuds", "headset", "watch", "smartwatch", "tablet",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			EvidenceDir: defaultEvidenceDir,
			APIBind:     defaultAPIBind,
		},
		Detection: Detection{
			SimilarityThreshold: defaultSimilarityThreshold,
			GazeMargin:          defaultGazeMargin,
			GadgetLabels:        append([]string(nil), defaultGadgetLabels...),
			NoFaceScore:         defaultNoFaceScore,
			MultiFaceScore:      defaultMultiFaceScore,
			MismatchScore:       defaultMismatchScore,
			UnknownFaceScore:    defaultUnknownFaceScore,
			GazeScore:           defaultGazeScore,
			DeviceScore:         defaultDeviceScore,
			TabSwitchScore:      defaultTabSwitchScore,
			FaceToolBinary:      defaultFaceToolBinary,
			ObjectToolBinary:    defaultObjectToolBinary,
			ObjectConfidence:    defaultObjectConfidence,
		},
		Audio: Audio{
			SampleRate:        defaultAudioSampleRate,
			RMSThreshold:      defaultAudioRMSThreshold,
			ExcerptRunes:      defaultAudioExcerptRunes,
			SpeechScore:       defaultAudioSpeechScore,
			NoiseScore:        defaultAudioNoiseScore,
			ErrorScore:        defaultAudioErrorScore,
			TranscriberBinary: defaultTranscriberBinary,
			FFmpegBinary:      defaultFFmpegBinary,
		},
		Policy: Policy{
			Mode:        defaultPolicyMode,
			Threshold:   defaultPolicyThreshold,
			BlockReason: defaultBlockReason,
		},
		Ingest: Ingest{
			Workers:        defaultIngestWorkers,
			QueueDepth:     defaultIngestQueueDepth,
			EnqueueTimeout: defaultIngestEnqueueTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
