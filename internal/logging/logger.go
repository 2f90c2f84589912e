// Package logging provides leveled logging and run diagnostics for nboxsim.
// It offers two complementary outputs:
//   - A leveled logrus.Logger for stderr (operational output)
//   - A Diagnostics writer for structured JSONL warnings (<run dir>/diagnostics.jsonl)
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ParseLevel maps a string level name to a logrus.Level.
// Supported values: "error", "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger creates a leveled logger writing to w.
func NewLogger(level string, w io.Writer) *logrus.Logger {
	return &logrus.Logger{
		Out: w,
		Formatter: &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		},
		Hooks: make(logrus.LevelHooks),
		Level: ParseLevel(level),
	}
}

// Discard returns a logger that drops everything. Used by tests and library callers
// that do not care about operational output.
func Discard() *logrus.Logger {
	return NewLogger("error", io.Discard)
}

// Diagnostics writes recoverable per-event conditions as JSONL records.
// It is safe for concurrent use. A nil Diagnostics is safe to use;
// all methods are no-ops on nil receiver.
type Diagnostics struct {
	mu     sync.Mutex
	file   *os.File
	logger *logrus.Logger
	count  int
}

// NewDiagnostics creates a diagnostics writer at dir/diagnostics.jsonl.
func NewDiagnostics(dir string) (*Diagnostics, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "diagnostics.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return newDiagnostics(f, f), nil
}

func newDiagnostics(w io.Writer, f *os.File) *Diagnostics {
	return &Diagnostics{
		file: f,
		logger: &logrus.Logger{
			Out:       w,
			Formatter: &logrus.JSONFormatter{},
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.WarnLevel,
		},
	}
}

// Warn records a warning with structured fields. Safe to call on nil receiver.
func (d *Diagnostics) Warn(msg string, fields logrus.Fields) {
	if d == nil || d.logger == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.WithFields(fields).Warn(msg)
	d.count++
}

// Count returns the number of warnings recorded so far. Safe to call on nil receiver.
func (d *Diagnostics) Count() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Close closes the underlying file. Safe to call on nil receiver.
func (d *Diagnostics) Close() error {
	if d == nil || d.file == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.file.Close()
	d.file = nil
	d.logger = nil
	return err
}
