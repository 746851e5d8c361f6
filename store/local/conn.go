package local

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/rediscache/internal/glob"
	"github.com/unkn0wn-root/rediscache/internal/wire"
	"github.com/unkn0wn-root/rediscache/store"
)

type conn struct {
	cl      *Cluster
	healthy atomic.Bool
	closed  atomic.Bool
}

var _ store.Conn = (*conn)(nil)

func (c *conn) Healthy() bool { return !c.closed.Load() && c.healthy.Load() }

func (c *conn) check() error {
	if c.closed.Load() {
		return store.ErrClosed
	}
	if !c.healthy.Load() {
		return ErrDisconnected
	}
	return nil
}

func (c *conn) Database(index int) (store.Database, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := c.cl.checkIndex(index); err != nil {
		return nil, err
	}
	return &database{c: c, index: index}, nil
}

func (c *conn) Server(endpoint string) (store.Server, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	n, ok := c.cl.byAddr[endpoint]
	if !ok {
		return nil, store.ErrUnknownEndpoint
	}
	return &server{c: c, n: n}, nil
}

func (c *conn) Endpoints(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	out := make([]string, len(c.cl.addrs))
	copy(out, c.cl.addrs)
	return out, nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	c.healthy.Store(false)
	return nil
}

type database struct {
	c     *conn
	index int
}

func (d *database) Index() int { return d.index }

func (d *database) cache(ctx context.Context, key string) (*bc.BigCache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.c.check(); err != nil {
		return nil, err
	}
	return d.c.cl.route(key).db(d.index)
}

func (d *database) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, _, ok, err := d.GetTTL(ctx, key)
	return payload, ok, err
}

func (d *database) GetTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	c, err := d.cache(ctx, key)
	if err != nil {
		return nil, 0, false, err
	}
	raw, err := c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	exp, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		return nil, 0, false, err
	}
	now := d.c.cl.now().UnixNano()
	if wire.Expired(exp, now) {
		_ = c.Delete(key)
		return nil, 0, false, nil
	}
	return payload, time.Duration(exp - now), true, nil
}

func (d *database) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c, err := d.cache(ctx, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return ignoreMissing(c.Delete(key))
	}
	exp := d.c.cl.now().Add(ttl).UnixNano()
	return c.Set(key, wire.EncodeEntry(exp, value))
}

func (d *database) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := d.Get(ctx, key)
	return ok, err
}

func (d *database) Del(ctx context.Context, key string) error {
	c, err := d.cache(ctx, key)
	if err != nil {
		return err
	}
	return ignoreMissing(c.Delete(key))
}

type server struct {
	c *conn
	n *node
}

func (s *server) Endpoint() string { return s.n.addr }

func (s *server) Keys(ctx context.Context, db int, pattern string, fn func(key string) error) error {
	if err := s.c.check(); err != nil {
		return err
	}
	if err := s.c.cl.checkIndex(db); err != nil {
		return err
	}
	c, err := s.n.db(db)
	if err != nil {
		return err
	}
	now := s.c.cl.now().UnixNano()
	it := c.Iterator()
	for it.SetNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := it.Value()
		if err != nil {
			return err
		}
		exp, _, err := wire.DecodeEntry(info.Value())
		if err != nil || wire.Expired(exp, now) {
			continue
		}
		if !glob.Match(pattern, info.Key()) {
			continue
		}
		if err := fn(info.Key()); err != nil {
			return err
		}
	}
	return nil
}

func (s *server) FlushDatabase(ctx context.Context, db int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.c.check(); err != nil {
		return err
	}
	if err := s.c.cl.checkIndex(db); err != nil {
		return err
	}
	c, err := s.n.db(db)
	if err != nil {
		return err
	}
	return c.Reset()
}

func ignoreMissing(err error) error {
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}
