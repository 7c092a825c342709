package auth

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger adapts a logrus logger to Logger. Key value pairs
// passed as args end up as structured fields.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// WithFields returns a logger carrying the given fields on every entry.
func WithFields(logger Logger, fields map[string]any) Logger {
	if l, ok := logger.(*logrusLogger); ok {
		return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
	}
	return logger
}

func (l *logrusLogger) Debug(msg string, args ...any) {
	l.with(args).Debug(msg)
}

func (l *logrusLogger) Info(msg string, args ...any) {
	l.with(args).Info(msg)
}

func (l *logrusLogger) Warn(msg string, args ...any) {
	l.with(args).Warn(msg)
}

func (l *logrusLogger) Error(msg string, args ...any) {
	l.with(args).Error(msg)
}

func (l *logrusLogger) with(args []any) *logrus.Entry {
	if len(args) == 0 {
		return l.entry
	}
	fields := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["arg"] = args[i]
			break
		}
		if err, ok := args[i+1].(error); ok {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	return l.entry.WithFields(fields)
}

// ParseLogLevel configures the standard logrus logger from a level name.
func ParseLogLevel(l *logrus.Logger, level string) error {
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	return nil
}

func defaultLogger() Logger {
	return NewLogrusLogger(nil)
}
