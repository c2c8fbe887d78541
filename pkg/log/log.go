// Package log configures the structured logger shared by the service.
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// RequestIDKey is the field name used to correlate log lines with a request.
const RequestIDKey = "request_id"

type Fields = logrus.Fields

// Options controls logger construction.
type Options struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string
	// File enables a rotating log file in addition to stderr.
	File string
	// NoColors disables ANSI colours, useful when stderr is not a terminal.
	NoColors bool
}

// New builds a logger from opts. An unknown level falls back to info.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{os.Stderr}
	if opts.File != "" && os.Getenv("APP_ENV") != "test" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(true)
	return l
}

// Init installs the process-wide logger. Only the first call has an effect.
func Init(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = New(opts)
	})
	return logger
}

// Default returns the process-wide logger, creating an info-level one if Init
// was never called.
func Default() *logrus.Logger {
	return Init(Options{})
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func Debug(fields Fields, msg string) {
	Default().WithFields(orEmpty(fields)).Debug(msg)
}

func Info(fields Fields, msg string) {
	Default().WithFields(orEmpty(fields)).Info(msg)
}

func Warn(fields Fields, msg string) {
	Default().WithFields(orEmpty(fields)).Warn(msg)
}

func Error(fields Fields, msg string) {
	Default().WithFields(orEmpty(fields)).Error(msg)
}

func Fatal(fields Fields, msg string) {
	Default().WithFields(orEmpty(fields)).Fatal(msg)
}

func orEmpty(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}
	return fields
}
