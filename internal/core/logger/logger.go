package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

type Level slog.Level

var (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

var defaultLevel = Level(slog.LevelInfo)

func SetDefaultLevel(level Level) {
	defaultLevel = level
}

type HandlerOption func(*tint.Options)

func WithTimeFormat(format string) HandlerOption {
	return func(opts *tint.Options) {
		opts.TimeFormat = format
	}
}

func WithNoColor(noColor bool) HandlerOption {
	return func(opts *tint.Options) {
		opts.NoColor = noColor
	}
}

func NewHandlerOptions(w io.Writer, opts ...HandlerOption) *tint.Options {
	isTerminal := false
	if f, ok := w.(*os.File); ok {
		isTerminal = isatty.IsTerminal(f.Fd())
	}
	timeFormat := time.Stamp
	if !isTerminal {
		timeFormat = time.RFC3339
	}
	tintOpts := &tint.Options{
		Level:      slog.Level(defaultLevel),
		NoColor:    !isTerminal,
		TimeFormat: timeFormat,
	}
	for _, opt := range opts {
		opt(tintOpts)
	}
	return tintOpts
}

func DefaultHandler(w io.Writer, opts ...HandlerOption) slog.Handler {
	return tint.NewHandler(w, NewHandlerOptions(w, opts...))
}

type LoggerOption func(*Logger)

func WithName(name string) LoggerOption {
	return func(l *Logger) {
		l.name = name
	}
}

func WithLevel(level Level) LoggerOption {
	return func(l *Logger) {
		l.level = level
	}
}

func WithHandler(handler slog.Handler) LoggerOption {
	return func(l *Logger) {
		l.handler = handler
	}
}

// WithWriter sends output to w instead of stderr.
func WithWriter(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.writer = w
	}
}

func WithHandlerOptions(opts ...HandlerOption) LoggerOption {
	return func(l *Logger) {
		l.opts = opts
	}
}

// Logger is a named slog logger writing through tint
type Logger struct {
	*slog.Logger
	level   Level
	handler slog.Handler
	writer  io.Writer
	name    string
	opts    []HandlerOption
}

// NewLogger creates a new logger instance
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		name:   "root",
		level:  defaultLevel,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.handler == nil {
		handlerOpts := append(l.opts, func(tintOpts *tint.Options) {
			tintOpts.Level = slog.Level(l.level)
		})
		l.handler = DefaultHandler(l.writer, handlerOpts...)
	}
	l.Logger = slog.New(l.handler).WithGroup(l.name)
	return l
}

// Discard returns a logger that drops every record
func Discard() *Logger {
	return NewLogger(WithWriter(io.Discard), WithLevel(LevelError))
}

// Named returns a child logger sharing the handler under a new group name
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:  l.Logger.WithGroup(name),
		level:   l.level,
		handler: l.handler,
		writer:  l.writer,
		name:    name,
		opts:    l.opts,
	}
}

// With creates a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:  l.Logger.With(args...),
		level:   l.level,
		handler: l.handler,
		writer:  l.writer,
		name:    l.name,
		opts:    l.opts,
	}
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}
