// Package console prints the progress of an audit run.
//
// A Logger is built once at startup and handed to every component. It owns
// the color policy, the optional log file and the debug logger, so no
// package keeps output state of its own.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

type Kind int

const (
	Default Kind = iota
	Info
	Good
	Warning
	Alert
)

var kindColors = map[Kind]color.Attribute{
	Default: color.Reset,
	Info:    color.FgBlue,
	Good:    color.FgHiGreen,
	Warning: color.FgYellow,
	Alert:   color.FgHiRed,
}

type Logger struct {
	out     io.Writer
	file    io.WriteCloser
	noColor bool
	debug   *zap.SugaredLogger
}

type Option func(*Logger)

func WithWriter(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

func WithNoColor(noColor bool) Option {
	return func(l *Logger) { l.noColor = noColor }
}

// WithLogFile duplicates every line, uncolored, to w.
func WithLogFile(w io.WriteCloser) Option {
	return func(l *Logger) { l.file = w }
}

func WithDebugLogger(d *zap.Logger) Option {
	return func(l *Logger) { l.debug = d.Sugar() }
}

func New(opts ...Option) *Logger {
	l := &Logger{
		out:   os.Stdout,
		debug: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Nop returns a logger that discards everything, for tests.
func Nop() *Logger {
	return New(WithWriter(io.Discard), WithNoColor(true))
}

// OpenLogFile opens path in append mode.
func OpenLogFile(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, xerrors.Errorf("unable to open the log file %s: %w", path, err)
	}
	return f, nil
}

// NewDebugLogger builds the zap logger behind --debug.
func NewDebugLogger(enabled bool) (*zap.Logger, error) {
	if !enabled {
		return zap.NewNop(), nil
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, xerrors.Errorf("failed to build the debug logger: %w", err)
	}
	return logger, nil
}

// Print writes msg in the color of kind, indented by level tabs, followed by
// the uncolored suffix.
func (l *Logger) Print(kind Kind, level int, msg, suffix string) {
	indent := strings.Repeat("\t", level)
	plain := indent + msg + suffix

	line := plain
	if !l.noColor {
		c := color.New(kindColors[kind])
		// the policy is per logger, not the global color.NoColor switch
		c.EnableColor()
		line = c.Sprint(indent+msg) + suffix
	}

	fmt.Fprintln(l.out, line)
	if l.file != nil {
		fmt.Fprintln(l.file, plain)
	}
}

func (l *Logger) Default(level int, format string, args ...interface{}) {
	l.Print(Default, level, fmt.Sprintf(format, args...), "")
}

func (l *Logger) Info(level int, format string, args ...interface{}) {
	l.Print(Info, level, fmt.Sprintf(format, args...), "")
}

func (l *Logger) Good(level int, format string, args ...interface{}) {
	l.Print(Good, level, fmt.Sprintf(format, args...), "")
}

func (l *Logger) Warning(level int, format string, args ...interface{}) {
	l.Print(Warning, level, fmt.Sprintf(format, args...), "")
}

func (l *Logger) Alert(level int, format string, args ...interface{}) {
	l.Print(Alert, level, fmt.Sprintf(format, args...), "")
}

// Banner prints a section header.
func (l *Logger) Banner(title string) {
	bar := strings.Repeat("#", 55)
	l.Print(Info, 0, fmt.Sprintf("%s\n\t\t%s\n%s", bar, title, bar), "")
}

func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.debug.Debugw(msg, keysAndValues...)
}

// Close flushes the debug logger and closes the log file.
func (l *Logger) Close() error {
	_ = l.debug.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
