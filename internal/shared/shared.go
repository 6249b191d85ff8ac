// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/natefinch/lumberjack"
)

// UploadDir is the key prefix for every stored upload and derived artifact.
const UploadDir = "uploads/dataset"

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] writing to a size-rotated file at path.
func NewFileLogger(path string, maxSize, maxAge int) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSize, // megabytes
		MaxAge:   maxAge,  // days
	}
	return NewLogger(w), nil
}

// LoggerFromConfig builds the application logger described by [LogConfig].
func LoggerFromConfig(c LogConfig) (*log.Logger, error) {
	var (
		logger *log.Logger
		err    error
	)

	if c.File != "" {
		logger, err = NewFileLogger(c.File, c.MaxSize, c.MaxAge)
		if err != nil {
			return nil, err
		}
	} else {
		logger = NewLogger(nil)
	}

	if c.Level != "" {
		level, err := log.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Level)
		}
		SetLogLevel(logger, level)
	}

	return logger, nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// UploadPath returns a randomized storage key for an uploaded file, keeping only the extension of filename.
//
// The original name never reaches storage so uploads from different users cannot collide.
func UploadPath(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	return path.Join(UploadDir, fmt.Sprintf("%s.%s", GenerateID(), strings.ToLower(ext)))
}
