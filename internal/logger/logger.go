package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

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

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	base         = newBase(os.Stdout, "text")
	closer       io.Closer
)

func newBase(w io.Writer, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	l, ok := ParseLevel(level)
	if !ok {
		return
	}
	mu.Lock()
	currentLevel = l
	mu.Unlock()
}

// Configure sets level, output format ("text" or "json") and destination
// ("stdout", "stderr" or a file path, appended to).
func Configure(level, format, output string) error {
	var w io.Writer
	var c io.Closer

	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w, c = f, f
	}

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
	}
	base = newBase(w, strings.ToLower(format))
	closer = c
	mu.Unlock()

	SetLevel(level)
	return nil
}

// SetOutput redirects log output in text format. Mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	base = newBase(w, "text")
	mu.Unlock()
}

func enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= currentLevel
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func log(level Level, format string, v ...any) {
	if !enabled(level) {
		return
	}
	l := current()
	l.WithLevel(level.zerolog()).Msg(fmt.Sprintf(format, v...))
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}

// Logger writes structured entries: a message plus key/value attributes.
//
// It satisfies the logging interface of the chat room, so the room's state
// transitions end up in the same stream as the rest of the process.
type Logger struct {
	component string
}

// New returns a structured logger whose entries carry a "component" field.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Debug(msg string, kv ...any) { l.write(LevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.write(LevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.write(LevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.write(LevelError, msg, kv) }

func (l *Logger) write(level Level, msg string, kv []any) {
	if !enabled(level) {
		return
	}
	zl := current()
	ev := zl.WithLevel(level.zerolog())
	if l.component != "" {
		ev = ev.Str("component", l.component)
	}
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			ev = ev.Interface("extra", kv[i])
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = fieldValue(ev, key, kv[i+1])
	}
	ev.Msg(msg)
}

func fieldValue(ev *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return ev.Str(key, v)
	case uint8:
		return ev.Uint8(key, v)
	case int:
		return ev.Int(key, v)
	case int64:
		return ev.Int64(key, v)
	case bool:
		return ev.Bool(key, v)
	case time.Duration:
		return ev.Dur(key, v)
	case error:
		return ev.AnErr(key, v)
	case fmt.Stringer:
		return ev.Stringer(key, v)
	default:
		return ev.Interface(key, v)
	}
}
