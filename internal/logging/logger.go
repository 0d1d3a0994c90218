// Package logging configures the structured logger shared by every component.
//
// Logs go to stderr, never stdout: in serve mode stdout carries the JSON-RPC
// stream.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunIDKey is the field that identifies one process run.
const RunIDKey = "run_id"

// Options configures New.
type Options struct {
	// Level is a logrus level name such as "debug" or "info".
	Level string

	// File, when set, receives a copy of every entry and is rotated by size.
	File string

	// Output defaults to os.Stderr.
	Output io.Writer

	NoColors bool
}

// Logger is a logrus logger that owns its optional log file.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{Logger: logrus.New()}
	l.SetLevel(level)
	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			if opts.NoColors {
				return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
			}
			return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{out}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		}
		writers = append(writers, l.file)
	}
	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(level >= logrus.DebugLevel)

	return l, nil
}

// Run returns an entry tagged with a fresh run id.
func (l *Logger) Run() *logrus.Entry {
	id, err := uuid.NewRandom()
	if err != nil {
		l.WithError(err).Warn("failed to generate run id")
		return l.WithField(RunIDKey, "unknown")
	}
	return l.WithField(RunIDKey, id.String())
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
