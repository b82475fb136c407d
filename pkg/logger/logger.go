// Package logger wraps logrus with the configuration surface the rest of
// the codebase expects: leveled structured logging with a configurable
// format and destination.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls level, format and destination of a Logger.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`
	// Format is "json" or "text". Defaults to text.
	Format string `yaml:"format"`
	// Output is "stdout", "stderr" or "file". Defaults to stdout.
	Output string `yaml:"output"`
	// FilePrefix is the log file path prefix when Output is "file";
	// the current date and a .log suffix are appended.
	FilePrefix string `yaml:"file_prefix"`
}

// Logger is a thin wrapper over a logrus entry so call sites can chain
// WithField/WithError without caring about the underlying library.
type Logger struct {
	*logrus.Entry
}

// New builds a Logger from cfg. Unknown values fall back to sane
// defaults rather than failing, so a half-filled config still logs.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	switch cfg.Output {
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		if w, err := openLogFile(cfg.FilePrefix); err == nil {
			l.SetOutput(w)
		} else {
			l.SetOutput(os.Stdout)
			l.WithError(err).Warn("falling back to stdout")
		}
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Entry: logrus.NewEntry(l)}
}

// NewDefault returns an info-level text logger tagged with the given
// component name. Services use this when no logger is injected.
func NewDefault(component string) *Logger {
	l := New(Config{})
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

// WithComponent returns a copy of the logger tagged with a component
// field. The receiver is not modified.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

// SetOutput redirects all output of the underlying logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.Entry.Logger.SetOutput(w)
}

func openLogFile(prefix string) (io.Writer, error) {
	if prefix == "" {
		return nil, fmt.Errorf("logger: file output requested without file prefix")
	}
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}
