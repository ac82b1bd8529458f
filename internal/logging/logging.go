// Package logging wraps logrus behind the key/value call shape the
// teacher repo's own logger uses (log.Info("msg", "key", val, ...)), so
// call sites throughout this module read the way turbo-geth's do even
// though the backing library differs.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is a structured, leveled logger bound to a component name.
type Logger struct {
	entry *logrus.Entry
}

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// New returns a Logger tagged with component, e.g. New("runtime").
func New(component string) *Logger {
	return &Logger{entry: base.WithField("component", component)}
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

// Debug logs at debug level with alternating key/value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.entry.WithFields(kvFields(kv)).Debug(msg) }

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) { l.entry.WithFields(kvFields(kv)).Info(msg) }

// Warn logs at warn level with alternating key/value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.entry.WithFields(kvFields(kv)).Warn(msg) }

// Error logs at error level with alternating key/value pairs.
func (l *Logger) Error(msg string, kv ...interface{}) { l.entry.WithFields(kvFields(kv)).Error(msg) }

// With returns a child logger with additional static fields merged in.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(kvFields(kv))}
}
