package log

import "time"

// Logger provides structured logging capabilities.
type Logger interface {
	// Debug logs a debug-level message with fields.
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with fields.
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with fields.
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Uint32 creates a uint32 field.
func Uint32(key string, value uint32) Field {
	return Field{Key: key, Value: uint64(value)}
}

// Named returns a Logger that tags every message with a component field.
func Named(l Logger, component string) Logger {
	if n, ok := l.(namedLogger); ok {
		component = n.component + "." + component
		l = n.parent
	}
	return namedLogger{parent: l, component: component}
}

type namedLogger struct {
	parent    Logger
	component string
}

func (n namedLogger) with(fields []Field) []Field {
	return append([]Field{String("component", n.component)}, fields...)
}

func (n namedLogger) Debug(msg string, fields ...Field) { n.parent.Debug(msg, n.with(fields)...) }
func (n namedLogger) Info(msg string, fields ...Field)  { n.parent.Info(msg, n.with(fields)...) }
func (n namedLogger) Warn(msg string, fields ...Field)  { n.parent.Warn(msg, n.with(fields)...) }
func (n namedLogger) Error(msg string, fields ...Field) { n.parent.Error(msg, n.with(fields)...) }
