package api

import (
	"io"

	"github.com/sirupsen/logrus"
)

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l *leveledLogger) fields(kv []interface{}) *logrus.Entry {
	e := l.entry
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			e = e.WithField(k, kv[i+1])
		}
	}
	return e
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Error(msg) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Warn(msg) }

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
