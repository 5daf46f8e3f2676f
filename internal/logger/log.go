package logger

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level is shared by every logger, so verbosity can be raised once at startup.
var Level = new(slog.LevelVar)

var jsonOutput atomic.Bool

// Configure sets the process-wide verbosity and output encoding for loggers
// created afterwards.
func Configure(verbose, json bool) {
	if verbose {
		Level.Set(slog.LevelDebug)
	} else {
		Level.Set(slog.LevelInfo)
	}
	jsonOutput.Store(json)
}

type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string, err error)
	Debug(msg string)
	With(key, value string) Logger
}

type options struct {
	out  io.Writer
	json bool
}

type Option func(*options)

// WithWriter redirects output away from stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON forces JSON lines regardless of Configure.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

type slogLogger struct {
	*slog.Logger
}

// New returns a logger tagged with component=name.
func New(name string, opts ...Option) Logger {
	o := options{out: os.Stdout, json: jsonOutput.Load()}
	for _, opt := range opts {
		opt(&o)
	}
	ho := &slog.HandlerOptions{Level: Level, AddSource: true}
	var h slog.Handler = slog.NewTextHandler(o.out, ho)
	if o.json {
		h = slog.NewJSONHandler(o.out, ho)
	}
	return slogLogger{slog.New(h).With("component", name)}
}

func Discard() Logger {
	return New("discard", WithWriter(io.Discard))
}

func (l slogLogger) Info(msg string)  { l.Logger.Info(msg) }
func (l slogLogger) Warn(msg string)  { l.Logger.Warn(msg) }
func (l slogLogger) Debug(msg string) { l.Logger.Debug(msg) }

func (l slogLogger) Error(msg string, err error) {
	if err == nil {
		l.Logger.Error(msg)
		return
	}
	l.Logger.Error(msg, slog.Any("error", err))
}

func (l slogLogger) With(key, value string) Logger {
	return slogLogger{l.Logger.With(key, value)}
}
