// Package logger provides the leveled printf-style logger shared by the
// dittodrop client and daemon.
//
// A *Logger is created from a Config and passed explicitly to the components
// that log. The package-level functions write to a process-wide default and
// exist for command bootstrapping before configuration is loaded.
package logger

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
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

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(level string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// Config selects level, format and destination of a Logger.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR. Empty means INFO.
	Level string

	// Format is "text" or "json". Empty means text.
	Format string

	// Output is "stdout", "stderr" or a file path. Empty means stdout.
	Output string
}

// Logger writes leveled messages. A nil *Logger discards everything.
type Logger struct {
	level  *atomic.Int32
	text   *stdlog.Logger
	json   *slog.Logger
	attrs  []any
	closer io.Closer
}

// New builds a Logger from cfg. File outputs are opened in append mode and
// their parent directory is created if missing.
func New(cfg Config) (*Logger, error) {
	var (
		out    io.Writer
		closer io.Closer
	)

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	var format string
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		format = "text"
	case "json":
		format = "json"
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	l := NewWithWriter(out, format)
	l.closer = closer
	if cfg.Level != "" {
		lvl, ok := ParseLevel(cfg.Level)
		if !ok {
			_ = l.Close()
			return nil, fmt.Errorf("unknown log level %q", cfg.Level)
		}
		l.level.Store(int32(lvl))
	}
	return l, nil
}

// NewWithWriter returns an INFO level logger writing to w in the given format
// ("json" or anything else for text).
func NewWithWriter(w io.Writer, format string) *Logger {
	l := &Logger{level: new(atomic.Int32)}
	l.level.Store(int32(LevelInfo))
	if format == "json" {
		l.json = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		l.text = stdlog.New(w, "", 0)
	}
	return l
}

// Discard returns a logger that drops every message.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "text")
}

// With returns a child logger that appends key=value to every message.
// The child shares its parent's level and output.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	child := *l
	child.attrs = append(append([]any(nil), l.attrs...), key, value)
	child.closer = nil
	return &child
}

// SetLevel changes the minimum level. Unknown names are ignored.
func (l *Logger) SetLevel(level string) {
	if l == nil {
		return
	}
	if lvl, ok := ParseLevel(level); ok {
		l.level.Store(int32(lvl))
	}
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError
	}
	return Level(l.level.Load())
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.Level()
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) log(level Level, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}

	message := fmt.Sprintf(format, v...)
	if l.json != nil {
		l.json.Log(context.Background(), level.slogLevel(), message, l.attrs...)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", time.Now().Format("2006-01-02 15:04:05"), level, message)
	for i := 0; i+1 < len(l.attrs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", l.attrs[i], l.attrs[i+1])
	}
	l.text.Println(b.String())
}

func (l *Logger) Debug(format string, v ...any) { l.log(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.log(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.log(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.log(LevelError, format, v...) }

var std atomic.Pointer[Logger]

func init() {
	std.Store(NewWithWriter(os.Stdout, "text"))
}

// Default returns the process-wide logger.
func Default() *Logger {
	return std.Load()
}

// SetDefault replaces the process-wide logger. A nil l is ignored.
func SetDefault(l *Logger) {
	if l != nil {
		std.Store(l)
	}
}

func SetLevel(level string) {
	Default().SetLevel(level)
}

func Debug(format string, v ...any) {
	Default().log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	Default().log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	Default().log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	Default().log(LevelError, format, v...)
}
