// Package asynchook moves rediscache hook delivery off the caller's goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{DecodeFailedEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	mgr, _ := rediscache.NewConnectionManager(rediscache.ManagerOptions{
//	    ConnectionString: "redis://localhost:6379/0",
//	    Hooks:            hooks,
//	})
//
// Events are dropped when the queue is full; Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rediscache"
)

type Hooks struct {
	inner   rediscache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against send-on-closed
	closed  bool
	dropped atomic.Uint64
}

var _ rediscache.Hooks = (*Hooks)(nil)

func New(inner rediscache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close delivers queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Reconnected(n uint64, took time.Duration) {
	h.try(func() { h.inner.Reconnected(n, took) })
}
func (h *Hooks) ReconnectFailed(err error)        { h.try(func() { h.inner.ReconnectFailed(err) }) }
func (h *Hooks) DecodeFailed(k string, err error) { h.try(func() { h.inner.DecodeFailed(k, err) }) }
func (h *Hooks) WriteQueueFull(k string)          { h.try(func() { h.inner.WriteQueueFull(k) }) }
func (h *Hooks) DetachedWriteFailed(op, k string, err error) {
	h.try(func() { h.inner.DetachedWriteFailed(op, k, err) })
}
func (h *Hooks) Swept(p string, n int, err error) { h.try(func() { h.inner.Swept(p, n, err) }) }
func (h *Hooks) EndpointFlushed(ep string, db int, err error) {
	h.try(func() { h.inner.EndpointFlushed(ep, db, err) })
}
