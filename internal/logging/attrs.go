package logging

import (
	"log/slog"
	"time"
)

// Attr aliases slog.Attr so call sites avoid a second import.
type Attr = slog.Attr

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized structured logging key for session identifiers.
	FieldSessionID = "session_id"
	// FieldCandidateID is the standardized structured logging key for candidate identifiers.
	FieldCandidateID = "candidate_id"
	// FieldEventType is the standardized structured logging key for event type names.
	FieldEventType = "event_type"
	// FieldRequestID is the standardized structured logging key for request correlation identifiers.
	FieldRequestID = "request_id"
)

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}
