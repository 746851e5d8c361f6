package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHooksRecord(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	h := New("rediscache_", reg)

	h.Reconnected(1, 3*time.Millisecond)
	h.ReconnectFailed(errors.New("refused"))
	h.DecodeFailed("k", errors.New("bad"))
	h.WriteQueueFull("k")
	h.DetachedWriteFailed("set", "k", errors.New("x"))
	h.DetachedWriteFailed("remove", "k", errors.New("x"))
	h.Swept("*a*", 3, nil)
	h.Swept("", 2, errors.New("down"))
	h.EndpointFlushed("a:6379", 0, nil)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"connects", h.connects, 1},
		{"connect failures", h.connectFailures, 1},
		{"decode failures", h.decodeFailures, 1},
		{"queue full", h.queueFull, 1},
		{"detached set", h.detachedFailures.WithLabelValues("set"), 1},
		{"detached remove", h.detachedFailures.WithLabelValues("remove"), 1},
		{"sweeps ok", h.sweeps.WithLabelValues(StatusSuccess), 1},
		{"sweeps failed", h.sweeps.WithLabelValues(StatusFailure), 1},
		{"swept keys", h.sweptKeys, 5},
		{"flushes ok", h.flushes.WithLabelValues(StatusSuccess), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if n := testutil.CollectAndCount(h.connectDuration); n != 1 {
		t.Fatalf("histogram series = %d, want 1", n)
	}

	problems, err := testutil.GatherAndLint(reg)
	if err != nil {
		t.Fatalf("GatherAndLint: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("lint problems: %v", problems)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New("x_", reg)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	New("x_", reg)
}
