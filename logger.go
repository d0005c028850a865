package transit

import (
	"github.com/sirupsen/logrus"
)

// Logger is the minimal structured logging interface the client emits to.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrusLogger adapts a logrus logger to the Logger interface.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{l: l}
}

// NewDefaultLogger returns a ready-to-use logger writing to stderr at info
// level.
func NewDefaultLogger() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{l: l}
}

func (g *logrusLogger) Debug(msg string, keysAndValues ...any) {
	g.l.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (g *logrusLogger) Info(msg string, keysAndValues ...any) {
	g.l.WithFields(toFields(keysAndValues)).Info(msg)
}

func (g *logrusLogger) Warn(msg string, keysAndValues ...any) {
	g.l.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (g *logrusLogger) Error(msg string, keysAndValues ...any) {
	g.l.WithFields(toFields(keysAndValues)).Error(msg)
}

func toFields(keysAndValues []any) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
