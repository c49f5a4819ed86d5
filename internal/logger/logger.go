package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Logger provides structured logging for journald.
// It is safe for concurrent use; each entry is written as a single line.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a new logger instance
func New() *Logger {
	return &Logger{
		writer: os.Stdout,
	}
}

// NewWithWriter creates a logger with a custom writer
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		writer: w,
	}
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log("WARNING", msg, fields...)
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

func (l *Logger) log(level, msg string, fields ...Field) {
	output := fmt.Sprintf("LEVEL=%s MESSAGE=%s", level, msg)
	for _, field := range fields {
		output += fmt.Sprintf(" %s=%v", field.Key, field.Value)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.writer, output)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new field (shorthand)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Common field constructors
func Action(value string) Field     { return F("ACTION", value) }
func Status(value string) Field     { return F("STATUS", value) }
func Station(value string) Field    { return F("STATION", value) }
func Reservation(value int64) Field { return F("RESERVATION", value) }
func Actor(value string) Field      { return F("ACTOR", value) }
func Role(value string) Field       { return F("ROLE", value) }
func State(value string) Field      { return F("STATE", value) }
func Count(value int) Field         { return F("COUNT", value) }
func Error(value error) Field       { return F("ERROR", value) }
func Conflicts(value int) Field     { return F("CONFLICTS", value) }
func Started(value int) Field       { return F("STARTED", value) }
func Completed(value int) Field     { return F("COMPLETED", value) }
func Failed(value int) Field        { return F("FAILED", value) }
func Interval(value string) Field   { return F("INTERVAL", value) }
func Reason(value string) Field     { return F("REASON", value) }
