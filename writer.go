package rediscache

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type writeTask struct {
	ctx context.Context
	op  string
	key string
	fn  func(context.Context) error
}

// writer runs WriteDetached writes on a fixed worker pool. Each worker owns a bounded
// queue and a key always hashes to the same worker, so writes to one key apply in
// submission order. pending/idle let Wait observe completion of everything queued so far.
type writer struct {
	qs   []chan writeTask
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	pending int
	idle    chan struct{}
	closed  bool

	log   Logger
	hooks Hooks
}

// newWriter splits qlen evenly across workers, at least one slot each.
func newWriter(workers, qlen int, log Logger, hooks Hooks) *writer {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	per := max(qlen/workers, 1)
	w := &writer{qs: make([]chan writeTask, workers), log: log, hooks: hooks}
	w.wg.Add(workers)
	for i := range w.qs {
		q := make(chan writeTask, per)
		w.qs[i] = q
		go func() {
			defer w.wg.Done()
			for t := range q {
				w.run(t)
			}
		}()
	}
	return w
}

func (w *writer) queue(key string) chan writeTask {
	return w.qs[xxhash.Sum64String(key)%uint64(len(w.qs))]
}

func (w *writer) run(t writeTask) {
	if err := t.fn(t.ctx); err != nil {
		w.log.Warn("detached write failed", Fields{"op": t.op, "key": t.key, "err": err})
		w.hooks.DetachedWriteFailed(t.op, t.key, err)
	}
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
	w.mu.Unlock()
}

// submit never blocks. The task runs detached from ctx cancellation but keeps its values.
func (w *writer) submit(ctx context.Context, op, key string, fn func(context.Context) error) error {
	t := writeTask{ctx: context.WithoutCancel(ctx), op: op, key: key, fn: fn}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.queue(key) <- t:
		if w.pending == 0 {
			w.idle = make(chan struct{})
		}
		w.pending++
		return nil
	default:
		w.log.Warn("detached write queue full", Fields{"op": op, "key": key})
		w.hooks.WriteQueueFull(key)
		return ErrWriteQueueFull
	}
}

// wait blocks until every write queued before the call has finished.
func (w *writer) wait(ctx context.Context) error {
	w.mu.Lock()
	if w.pending == 0 {
		w.mu.Unlock()
		return nil
	}
	idle := w.idle
	w.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops intake and drains queued writes.
func (w *writer) close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, q := range w.qs {
			close(q)
		}
		w.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
