// Package monitoring owns the process logger.
//
// Logf is the package-level printf hook used for diagnostics throughout the
// service. It writes through a logrus logger configured by Setup, so both
// free-form and structured (With) lines share one output and format.
package monitoring

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = newLogger(os.Stderr)

// Logf is the package-level diagnostic logger. It logs at info level through
// the configured logrus logger and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	base.Infof(format, v...)
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Setup configures level and format ("text" or "json") of the process
// logger and points its output at w. A nil w keeps the current output.
func Setup(level, format string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch strings.ToLower(format) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q is not text or json", format)
	}
	base.SetLevel(lvl)
	if w != nil {
		base.SetOutput(w)
	}
	return nil
}

// With returns an entry carrying structured fields.
func With(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Logger returns the underlying logrus logger.
func Logger() *logrus.Logger { return base }
