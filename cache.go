package rediscache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rediscache/codec"
	"github.com/unkn0wn-root/rediscache/internal/glob"
	"github.com/unkn0wn-root/rediscache/store"
)

type cache struct {
	mgr        *ConnectionManager
	ser        codec.Serializer
	db         int
	defaultTTL time.Duration
	opTimeout  time.Duration
	sweeper    Sweeper
	near       NearCache
	log        Logger
	hooks      Hooks

	w         *writer // nil in WriteAwait mode
	closed    atomic.Bool
	nearClose sync.Once
}

func newCache(opts Options) (*cache, error) {
	if opts.Manager == nil {
		return nil, ErrNoManager
	}
	switch opts.WriteMode {
	case WriteAwait, WriteDetached:
	default:
		return nil, fmt.Errorf("rediscache: invalid write mode %d", int(opts.WriteMode))
	}

	c := &cache{
		mgr:       opts.Manager,
		db:        DefaultDatabase,
		opTimeout: opts.OpTimeout,
		near:      opts.NearCache,
	}

	if opts.Database != nil {
		c.db = *opts.Database
	}

	// defaults
	c.ser = coalesce[codec.Serializer](opts.Serializer, codec.JSON{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, DefaultTTL)
	c.sweeper = coalesce[Sweeper](opts.Sweeper, scanDelete{})
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.WriteMode == WriteDetached {
		c.w = newWriter(coalesce(opts.WriteWorkers, 4), coalesce(opts.WriteQueue, 1024), c.log, c.hooks)
	}
	return c, nil
}

func (c *cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if c.near != nil {
		if raw, ok := c.near.Get(key); ok {
			if err := c.decode(key, raw, dst); err != nil {
				c.near.Del(key)
				return false, err
			}
			return true, nil
		}
	}

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	db, err := c.mgr.Database(ctx, c.db)
	if err != nil {
		return false, err
	}
	if c.near == nil {
		raw, ok, err := db.Get(ctx, key)
		if err != nil || !ok {
			return false, err
		}
		if err := c.decode(key, raw, dst); err != nil {
			return false, err
		}
		return true, nil
	}

	raw, ttl, ok, err := db.GetTTL(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := c.decode(key, raw, dst); err != nil {
		return false, err
	}
	// the near entry must not outlive the stored one
	if ttl == store.NoExpiry {
		ttl = 0
	}
	c.near.Set(key, raw, ttl)
	return true, nil
}

func (c *cache) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.defaultTTL)
}

func (c *cache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.set(ctx, key, value, ttl, false)
}

func (c *cache) SetSync(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.set(ctx, key, value, ttl, true)
}

func (c *cache) set(ctx context.Context, key string, value any, ttl time.Duration, await bool) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if isNil(value) {
		c.log.Debug("set skipped (nil value)", Fields{"key": key})
		return nil
	}
	payload, err := c.ser.Marshal(value)
	if err != nil {
		return &SerializationError{Key: key, Op: "encode", Err: err}
	}
	write := func(ctx context.Context) error { return c.storeSet(ctx, key, payload, ttl) }
	if await || c.w == nil {
		return write(ctx)
	}
	return c.w.submit(ctx, "set", key, write)
}

func (c *cache) storeSet(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if c.near != nil {
		c.near.Del(key)
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	db, err := c.mgr.Database(ctx, c.db)
	if err != nil {
		return err
	}
	if err := db.Set(ctx, key, payload, ttl); err != nil {
		return err
	}
	if c.near != nil && ttl > 0 {
		c.near.Set(key, payload, ttl)
	}
	return nil
}

func (c *cache) IsSet(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	db, err := c.mgr.Database(ctx, c.db)
	if err != nil {
		return false, err
	}
	return db.Exists(ctx, key)
}

func (c *cache) Remove(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.w == nil {
		return c.storeDel(ctx, key)
	}
	return c.w.submit(ctx, "remove", key, func(ctx context.Context) error { return c.storeDel(ctx, key) })
}

func (c *cache) storeDel(ctx context.Context, key string) error {
	if c.near != nil {
		c.near.Del(key)
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	db, err := c.mgr.Database(ctx, c.db)
	if err != nil {
		return err
	}
	return db.Del(ctx, key)
}

func (c *cache) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	return c.sweep(ctx, glob.Contains(pattern))
}

func (c *cache) Clear(ctx context.Context) (int, error) {
	return c.sweep(ctx, "")
}

// sweep is not bounded by OpTimeout: it spans many round trips. Use ctx for a deadline.
func (c *cache) sweep(ctx context.Context, pattern string) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	n, err := c.sweeper.Sweep(ctx, c.mgr, c.db, pattern)
	if c.near != nil {
		c.near.Clear()
	}
	c.hooks.Swept(pattern, n, err)
	if err != nil {
		c.log.Error("sweep failed", Fields{"pattern": pattern, "removed": n, "err": err})
		return n, err
	}
	c.log.Info("sweep finished", Fields{"pattern": pattern, "removed": n})
	return n, nil
}

func (c *cache) Wait(ctx context.Context) error {
	if c.w == nil {
		return nil
	}
	return c.w.wait(ctx)
}

// Close stops intake, then drains detached writes. If ctx expires first, the
// remaining writes keep running and a later Close waits for them again.
// The near cache is released once the drain completes.
func (c *cache) Close(ctx context.Context) error {
	c.closed.Store(true)
	if c.w != nil {
		if err := c.w.close(ctx); err != nil {
			return err
		}
	}
	if c.near != nil {
		c.nearClose.Do(c.near.Close)
	}
	return nil
}

func (c *cache) decode(key string, raw []byte, dst any) error {
	if err := c.ser.Unmarshal(raw, dst); err != nil {
		c.log.Warn("decode failed", Fields{"key": key, "err": err})
		c.hooks.DecodeFailed(key, err)
		return &SerializationError{Key: key, Op: "decode", Err: err}
	}
	return nil
}

func (c *cache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}
