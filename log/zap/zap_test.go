package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/rediscache"
)

func TestLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core))

	l.Warn("connect failed", rediscache.Fields{"err": errors.New("refused"), "attempt": 2})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Message != "connect failed" || e.Level != zap.WarnLevel || e.LoggerName != "rediscache" {
		t.Fatalf("unexpected entry %+v", e.Entry)
	}
	ctx := e.ContextMap()
	if ctx["err"] != "refused" || ctx["attempt"] != int64(2) {
		t.Fatalf("unexpected fields %v", ctx)
	}
}

func TestNewProductionRejectsBadLevel(t *testing.T) {
	if _, _, err := NewProduction("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
