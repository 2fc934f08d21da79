package model

import (
	"log/slog"
	"time"
)

// Record is the intermediate type produced by the ingress adapter and
// consumed by the sink. It carries everything the sink injects as standard
// properties on a log line.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Target  string // logger/module name, typically the caller's package path
	File    string
	Line    int
}

// SeverityName returns the lowercase wire name for a level ("debug", "info",
// "warn", "error"). Intermediate levels round down to the nearest named one,
// matching slog's own bucketing.
func SeverityName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < slog.LevelWarn:
		return "info"
	case l < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
