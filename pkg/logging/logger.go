// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging provides structured logging for proofbridge components.
// Built on log/slog with multi-destination output (stderr, optional JSON
// file, optional exporter). Loggers are constructed once and passed down;
// no component reaches a process-wide instance.
//
// See docs/ARCHITECTURE.md § Observability.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the uppercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a level name to a Level. Unknown names default to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger construction. The zero value writes Info and above
// to stderr as text.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogDir, when set, additionally writes JSON log files named
	// "{service}_{date}.log" under the directory (created if missing;
	// supports a leading ~).
	LogDir string

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches stderr output to JSON. File output is always JSON.
	JSON bool

	// Quiet disables stderr output.
	Quiet bool

	// Exporter, when set, receives every emitted record asynchronously.
	Exporter Exporter
}

// Entry is one record handed to an Exporter.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// Exporter forwards log records to an external sink. Export must not block;
// failures are dropped rather than disrupting the caller.
type Exporter interface {
	Export(ctx context.Context, e Entry) error
	Flush(ctx context.Context) error
	Close() error
}

// Logger wraps slog.Logger with multi-destination output and cleanup.
// Safe for concurrent use. Close releases the file handle and flushes the
// exporter; callers that enable either must defer it.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter Exporter

	mu sync.Mutex
}

// New builds a Logger from cfg. File-handler setup failures degrade to
// stderr-only rather than erroring: logging must not take the process down.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var handlers []slog.Handler
	if !cfg.Quiet {
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	l := &Logger{config: cfg, exporter: cfg.Exporter}

	if cfg.LogDir != "" {
		dir := expandHome(cfg.LogDir)
		if err := os.MkdirAll(dir, 0o750); err == nil {
			service := cfg.Service
			if service == "" {
				service = "proofbridge"
			}
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			if f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640); err == nil {
				l.file = f
				handlers = append(handlers, slog.NewJSONHandler(f, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	l.slog = slog.New(handler)
	return l
}

// Default returns a stderr-only Info logger for the "proofbridge" service.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "proofbridge"})
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *Logger {
	return New(Config{Level: LevelError, Quiet: true})
}

// Debug logs at Debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info logs at Info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn logs at Warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error logs at Error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child logger carrying additional attributes. The file
// handle and exporter are shared with the parent; only the parent's Close
// releases them.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// Slog exposes the underlying slog.Logger for call sites that need it.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close flushes the exporter and closes the log file. Safe to call on
// loggers with neither configured.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var first error
	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.exporter.Flush(ctx); err != nil && first == nil {
			first = fmt.Errorf("flushing exporter: %w", err)
		}
		if err := l.exporter.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing exporter: %w", err)
		}
		cancel()
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil && first == nil {
			first = fmt.Errorf("syncing log file: %w", err)
		}
		if err := l.file.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing log file: %w", err)
		}
		l.file = nil
	}
	return first
}

func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	default:
		l.slog.Info(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		entry := Entry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(args),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = l.exporter.Export(ctx, entry)
		}()
	}
}

// multiHandler fans one record out to several slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			if err := hh.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func argsToMap(args []any) map[string]any {
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			m[k] = args[i+1]
		}
	}
	return m
}

// NopExporter discards every record.
type NopExporter struct{}

func (NopExporter) Export(context.Context, Entry) error { return nil }

func (NopExporter) Flush(context.Context) error { return nil }

func (NopExporter) Close() error { return nil }

var _ Exporter = NopExporter{}

// BufferedExporter collects records in memory so tests can inspect them.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []Entry
}

// NewBufferedExporter returns an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{}
}

// Export appends e to the buffer.
func (b *BufferedExporter) Export(_ context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	return nil
}

// Flush is a no-op; entries are already in memory.
func (b *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (b *BufferedExporter) Close() error { return nil }

// Entries returns a copy of the collected records.
func (b *BufferedExporter) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}
