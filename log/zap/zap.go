// Package zap adapts a *zap.Logger to rediscache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/rediscache"
)

var _ rediscache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l under the "rediscache" name. A nil l yields zap.NewNop.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("rediscache")}
}

// NewProduction builds a JSON logger at level ("debug", "info", "warn", "error").
func NewProduction(level string) (Logger, *zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return Logger{}, nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, nil, err
	}
	return New(l), l, nil
}

func (z Logger) Debug(msg string, f rediscache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f rediscache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f rediscache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f rediscache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts keys so output is stable; errors go through zap.NamedError.
func fields(f rediscache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
