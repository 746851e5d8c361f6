package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rediscache/store"
)

type database struct {
	cmd   goredis.Cmdable
	index int
}

var _ store.Database = (*database)(nil)

func (d *database) Index() int { return d.index }

func (d *database) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := d.cmd.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

// GetTTL reads the value and its PTTL in one pipelined round trip.
func (d *database) GetTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	var get *goredis.StringCmd
	var pttl *goredis.DurationCmd
	_, err := d.cmd.Pipelined(ctx, func(p goredis.Pipeliner) error {
		get = p.Get(ctx, key)
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, false, err
	}
	b, err := get.Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	ttl, err := pttl.Result()
	if err != nil {
		return nil, 0, false, err
	}
	rem, ok := remainingTTL(ttl)
	if !ok {
		return nil, 0, false, nil
	}
	return b, rem, true, nil
}

func (d *database) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		// SET with a non-positive expiry is rejected by the server; an entry that is
		// already expired is simply absent.
		return d.cmd.Del(ctx, key).Err()
	}
	return d.cmd.Set(ctx, key, value, ttl).Err()
}

func (d *database) Exists(ctx context.Context, key string) (bool, error) {
	n, err := d.cmd.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *database) Del(ctx context.Context, key string) error {
	return d.cmd.Del(ctx, key).Err()
}

type server struct {
	c    *conn
	addr string
}

var _ store.Server = (*server)(nil)

func (s *server) Endpoint() string { return s.addr }

func (s *server) node(ctx context.Context, db int) (*goredis.Client, error) {
	if s.c.closed.Load() {
		return nil, store.ErrClosed
	}
	if s.c.cluster == nil {
		return s.c.singleDB(db)
	}
	if db != store.DefaultDatabase && db != 0 {
		return nil, ErrClusterDatabase
	}
	return s.c.master(ctx, s.addr)
}

// Keys walks SCAN MATCH pattern with the configured COUNT hint.
func (s *server) Keys(ctx context.Context, db int, pattern string, fn func(key string) error) error {
	cl, err := s.node(ctx, db)
	if err != nil {
		return err
	}
	iter := cl.Scan(ctx, 0, pattern, s.c.scanCount).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *server) FlushDatabase(ctx context.Context, db int) error {
	cl, err := s.node(ctx, db)
	if err != nil {
		return err
	}
	return cl.FlushDB(ctx).Err()
}

// remainingTTL maps PTTL replies: -1 is a key without expiry, -2 a key that expired
// between GET and PTTL.
func remainingTTL(ttl time.Duration) (time.Duration, bool) {
	switch {
	case ttl == -1:
		return store.NoExpiry, true
	case ttl < 0:
		return 0, false
	default:
		return ttl, true
	}
}
