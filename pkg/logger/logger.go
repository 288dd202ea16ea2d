package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is a type alias for log fields to make the API cleaner
type Fields = logrus.Fields

// Options configure the global logger.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // text or json
	NoColor bool
	File    string // optional log file, rotated by lumberjack
}

var (
	mu     sync.Mutex
	logger *logrus.Logger

	// testOutput is used to capture log output during tests
	testOutput io.Writer
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	testOutput = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	mu.Lock()
	defer mu.Unlock()
	testOutput = nil
	if logger != nil {
		logger.SetOutput(os.Stderr)
	}
}

// InitLogger initializes the global logger.
func InitLogger(opts Options) {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel // fallback to info level
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors: opts.NoColor || opts.File != "",
			FullTimestamp: true,
		})
	}

	mu.Lock()
	defer mu.Unlock()
	switch {
	case testOutput != nil:
		l.SetOutput(testOutput)
	case opts.File != "":
		l.SetOutput(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	default:
		l.SetOutput(os.Stderr)
	}
	logger = l
}

// GetLogger returns the configured logger instance
func GetLogger() *logrus.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		InitLogger(Options{Level: "info"})
		mu.Lock()
		l = logger
		mu.Unlock()
	}
	return l
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields ...Fields) *logrus.Entry {
	return GetLogger().WithFields(mergeFields(fields...))
}

// Info logs an info message
func Info(msg string, fields ...Fields) {
	WithFields(fields...).Info(msg)
}

// Debug logs a debug message (only shown when debug level is enabled)
func Debug(msg string, fields ...Fields) {
	WithFields(fields...).Debug(msg)
}

// Warn logs a warning message
func Warn(msg string, fields ...Fields) {
	WithFields(fields...).Warn(msg)
}

// Error logs an error message
func Error(msg string, fields ...Fields) {
	WithFields(fields...).Error(msg)
}

// Success logs a success message as info with success indicator
func Success(msg string, fields ...Fields) {
	merged := mergeFields(fields...)
	merged["status"] = "success"
	GetLogger().WithFields(merged).Info(msg)
}

// mergeFields merges multiple logrus.Fields into one
func mergeFields(fields ...Fields) Fields {
	result := make(Fields)
	for _, field := range fields {
		for k, v := range field {
			result[k] = v
		}
	}
	return result
}
