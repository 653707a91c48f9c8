package bearerauth

import (
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Logger is the optional structured logging interface used across the
// pipeline. Arguments are alternating key/value pairs, log/slog style.
// A nil Logger disables logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewZapLogger adapts a zap.SugaredLogger to the Logger interface.
func NewZapLogger(l *zap.SugaredLogger) Logger {
	return &zapLogger{l: l}
}

type zapLogger struct{ l *zap.SugaredLogger }

func (z *zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z *zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }

// NewLogrusLogger adapts a logrus.FieldLogger to the Logger interface.
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	return &logrusLogger{l: l}
}

type logrusLogger struct{ l logrus.FieldLogger }

func (l *logrusLogger) Debug(msg string, args ...any) { l.entry(args).Debug(msg) }
func (l *logrusLogger) Info(msg string, args ...any)  { l.entry(args).Info(msg) }
func (l *logrusLogger) Warn(msg string, args ...any)  { l.entry(args).Warn(msg) }
func (l *logrusLogger) Error(msg string, args ...any) { l.entry(args).Error(msg) }

func (l *logrusLogger) entry(args []any) logrus.FieldLogger {
	return l.l.WithFields(fieldsOf(args))
}

// NewZerologLogger adapts a zerolog.Logger to the Logger interface.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

type zerologLogger struct{ l zerolog.Logger }

func (z *zerologLogger) Debug(msg string, args ...any) { emit(z.l.Debug(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { emit(z.l.Info(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { emit(z.l.Warn(), msg, args) }
func (z *zerologLogger) Error(msg string, args ...any) { emit(z.l.Error(), msg, args) }

func emit(event *zerolog.Event, msg string, args []any) {
	for key, value := range fieldsOf(args) {
		event = event.Interface(key, value)
	}
	event.Msg(msg)
}

// fieldsOf converts alternating key/value args into a field map. A trailing
// key without a value is kept with a nil value rather than dropped.
func fieldsOf(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(args) {
			fields[key] = args[i+1]
		} else {
			fields[key] = nil
		}
	}
	return fields
}
