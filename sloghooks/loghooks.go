// Package sloghooks logs rediscache hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rediscache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	DecodeFailedEvery uint64
	QueueFullEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	decodeCtr    atomic.Uint64
	queueFullCtr atomic.Uint64
}

var _ rediscache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Reconnected(attempt uint64, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("rediscache.reconnected",
		"attempt", attempt,
		"took", took)
}

func (h *Hooks) ReconnectFailed(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("rediscache.reconnect_failed", "err", err)
}

func (h *Hooks) DecodeFailed(key string, err error) {
	if h.l == nil || !sample(h.opts.DecodeFailedEvery, &h.decodeCtr) {
		return
	}
	h.l.Warn("rediscache.decode_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) WriteQueueFull(key string) {
	if h.l == nil || !sample(h.opts.QueueFullEvery, &h.queueFullCtr) {
		return
	}
	h.l.Warn("rediscache.write_queue_full", "key", h.redact(key))
}

func (h *Hooks) DetachedWriteFailed(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rediscache.detached_write_failed",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

// Swept logs the glob as-is; patterns are caller-chosen prefixes, not keys.
func (h *Hooks) Swept(pattern string, removed int, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Error("rediscache.sweep_failed",
			"pattern", pattern,
			"removed", removed,
			"err", err)
		return
	}
	h.l.Info("rediscache.swept",
		"pattern", pattern,
		"removed", removed)
}

func (h *Hooks) EndpointFlushed(endpoint string, db int, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Error("rediscache.flush_failed",
			"endpoint", endpoint,
			"db", db,
			"err", err)
		return
	}
	h.l.Info("rediscache.flushed",
		"endpoint", endpoint,
		"db", db)
}
