// Package logger provides the structured logger shared by the storefront
// packages. It is a thin wrapper around logrus that tags every entry with the
// component that produced it.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey string

// RequestIDKey is the context key carrying the request id of an outgoing call.
const RequestIDKey ctxKey = "request_id"

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// Logger is a logrus logger bound to a component name.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a logger for component using cfg.
func New(component string, cfg Config) *Logger {
	l := logrus.New()
	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Logger: l, component: component}
}

// NewDefault creates an info-level text logger for component.
func NewDefault(component string) *Logger {
	return New(component, Config{Level: os.Getenv("LOG_LEVEL")})
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return New("nop", Config{Output: io.Discard})
}

// Component returns the component name.
func (l *Logger) Component() string { return l.component }

// Named returns a logger sharing the same output but tagged with another component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger, component: component}
}

func (l *Logger) entry() *logrus.Entry {
	return l.Logger.WithField("component", l.component)
}

// WithField returns an entry with the component and the given field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry().WithField(key, value)
}

// WithFields returns an entry with the component and the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry().WithFields(logrus.Fields(fields))
}

// WithError returns an entry with the component and the error attached.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.entry().WithError(err)
}

// WithContext returns an entry carrying the request id stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	e := l.entry().WithContext(ctx)
	if ctx == nil {
		return e
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		e = e.WithField("request_id", id)
	}
	return e
}

// ContextWithRequestID stores a request id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Info logs at info level with the component field.
func (l *Logger) Info(args ...interface{}) { l.entry().Info(args...) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.entry().Infof(format, args...) }

// Warn logs at warn level with the component field.
func (l *Logger) Warn(args ...interface{}) { l.entry().Warn(args...) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.entry().Warnf(format, args...) }

// Error logs at error level with the component field.
func (l *Logger) Error(args ...interface{}) { l.entry().Error(args...) }

// Debug logs at debug level with the component field.
func (l *Logger) Debug(args ...interface{}) { l.entry().Debug(args...) }
