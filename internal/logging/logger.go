// Package logging provides structured logging for fieldsync.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is the structured context attached to a log entry.
type Fields = logrus.Fields

// Options configures the global logger.
type Options struct {
	Level string
	// File enables size-based rotation through lumberjack. Empty means stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	global = newLogger(os.Stdout, logrus.InfoLevel)
)

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return l
}

// Init replaces the global logger. It returns a closer for the rotated file,
// which is a no-op when logging to stdout.
func Init(opts Options) (io.Closer, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 20),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}
		out = rotator
		closer = rotator
	}

	SetOutput(out, level)
	return closer, err
}

// SetOutput swaps the writer and level of the global logger. Tests use it to
// capture entries.
func SetOutput(out io.Writer, level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	global = newLogger(out, level)
}

// Get returns the global logger.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func entry(fields []Fields) *logrus.Entry {
	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return Get().WithFields(merged)
}

func Debug(message string, fields ...Fields) {
	entry(fields).Debug(message)
}

func Info(message string, fields ...Fields) {
	entry(fields).Info(message)
}

func Warn(message string, fields ...Fields) {
	entry(fields).Warn(message)
}

// Error logs message with err attached under the "error" key.
func Error(message string, err error, fields ...Fields) {
	e := entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
