// Package logrus adapts a *logrus.Entry to rediscache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/rediscache"
)

var _ rediscache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=rediscache. A nil l uses logrus.StandardLogger.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "rediscache")}
}

func (l Logger) Debug(msg string, f rediscache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f rediscache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f rediscache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f rediscache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f rediscache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		e = e.WithField(k, v)
	}
	return e
}
