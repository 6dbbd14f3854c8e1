package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the handler encoding.
type LogFormat string

const (
	// FormatJSON emits one JSON object per record.
	FormatJSON LogFormat = "json"
	// FormatText emits logfmt-style key=value records.
	FormatText LogFormat = "text"
)

// redactedValue replaces secret attribute values in log output.
const redactedValue = "[REDACTED]"

// secretAttrKeys lists attribute keys whose values are always redacted.
var secretAttrKeys = map[string]bool{
	"secret":     true,
	"api_key":    true,
	"apikey":     true,
	"credential": true,
	"token":      true,
}

// Config controls logger construction.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn or error.
	Level string

	// Format selects json or text output.
	Format LogFormat

	// AddSource includes file:line of the call site in each record.
	AddSource bool

	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer
}

// Logger wraps a slog.Logger configured from Config.
type Logger struct {
	slog  *slog.Logger
	level slog.Level
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON, "":
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return &Logger{
		slog:  slog.New(handler),
		level: level,
	}, nil
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Level returns the configured minimum level.
func (l *Logger) Level() slog.Level {
	return l.level
}

// With returns a scoped slog.Logger carrying the given attributes.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.slog.With(args...)
}

// SetDefault installs the logger as the process-wide slog default.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.slog)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	if secretAttrKeys[strings.ToLower(a.Key)] {
		a.Value = slog.StringValue(redactedValue)
	}
	return a
}
