// Package logging builds the netspot logger. The program events go to the
// console; they can additionally be shipped to a file and to a TCP sink,
// each with its own level. The handle is passed down explicitly, there is
// no package-level logger.
package logging

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/asiffer/netspot/internal/errs"
)

const dialTimeout = 3 * time.Second

// Options configures the sinks. Zero values mean "console only".
type Options struct {
	// Level filters the console output ("debug", "info", "warn", "error").
	Level string
	// File receives a copy of the events, FileLevel filters it.
	File      string
	FileLevel string
	// Socket is a host:port TCP destination, SocketLevel filters it.
	Socket      string
	SocketLevel string
}

// Logger fans events out to the console and the optional sinks.
type Logger struct {
	console *log.Logger
	extra   []*log.Logger
	closers []io.Closer
	file    string
}

// New wraps a single writer, mainly for tests.
func New(w io.Writer) *Logger {
	return &Logger{console: log.NewWithOptions(w, log.Options{ReportTimestamp: true})}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := New(io.Discard)
	l.console.SetLevel(log.FatalLevel)
	return l
}

// Open builds the logger from the given options.
func Open(opts Options) (*Logger, error) {
	console := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	console.SetLevel(log.InfoLevel)
	if opts.Level != "" {
		lvl, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown log level %q", errs.ErrInvalidConfig, opts.Level)
		}
		console.SetLevel(lvl)
	}
	l := &Logger{console: console}

	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, err
		}
		l.file = opts.File
		l.addSink(f, opts.FileLevel)
		l.closers = append(l.closers, f)
	}
	if opts.Socket != "" {
		conn, err := net.DialTimeout("tcp", opts.Socket, dialTimeout)
		if err != nil {
			return nil, fmt.Errorf("cannot reach log socket %s: %w", opts.Socket, err)
		}
		l.addSink(conn, opts.SocketLevel)
		l.closers = append(l.closers, conn)
	}
	return l, nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); !isDir(dir) {
		return nil, fmt.Errorf("%w: %s is not a directory", errs.ErrInvalidPath, dir)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (l *Logger) addSink(w io.Writer, level string) {
	sink := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	sink.SetLevel(log.InfoLevel)
	if lvl, err := log.ParseLevel(level); err == nil && level != "" {
		sink.SetLevel(lvl)
	}
	l.extra = append(l.extra, sink)
}

// File returns the path of the file sink, if any.
func (l *Logger) File() string { return l.file }

// SetLevel changes the console level. The sinks keep their own.
func (l *Logger) SetLevel(level log.Level) { l.console.SetLevel(level) }

// With returns a logger with the key/value pairs attached to every event.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	out := &Logger{console: l.console.With(keyvals...), file: l.file, closers: l.closers}
	for _, sink := range l.extra {
		out.extra = append(out.extra, sink.With(keyvals...))
	}
	return out
}

func (l *Logger) Debug(msg interface{}, keyvals ...interface{}) {
	l.console.Debug(msg, keyvals...)
	for _, sink := range l.extra {
		sink.Debug(msg, keyvals...)
	}
}

func (l *Logger) Info(msg interface{}, keyvals ...interface{}) {
	l.console.Info(msg, keyvals...)
	for _, sink := range l.extra {
		sink.Info(msg, keyvals...)
	}
}

func (l *Logger) Warn(msg interface{}, keyvals ...interface{}) {
	l.console.Warn(msg, keyvals...)
	for _, sink := range l.extra {
		sink.Warn(msg, keyvals...)
	}
}

func (l *Logger) Error(msg interface{}, keyvals ...interface{}) {
	l.console.Error(msg, keyvals...)
	for _, sink := range l.extra {
		sink.Error(msg, keyvals...)
	}
}

// Close releases the file and socket sinks.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
