// Package nearcache provides an in-process L1 for rediscache, backed by ristretto.
//
// Entries are raw encoded bytes; cost is their length. Writes are admitted
// asynchronously by ristretto, so a Get right after Set may still miss.
package nearcache

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

type Config struct {
	NumCounters int64         // ~10x expected items; 0 => 1e5
	MaxCost     int64         // total bytes; 0 => 64MiB
	BufferItems int64         // 0 => 64
	MaxTTL      time.Duration // upper bound for any entry; 0 => 1m
	Metrics     bool
}

type Ristretto struct {
	c      *rc.Cache
	maxTTL time.Duration
}

func NewRistretto(cfg Config) (*Ristretto, error) {
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 || cfg.MaxTTL < 0 {
		return nil, errors.New("nearcache: invalid config")
	}
	if cfg.NumCounters == 0 {
		cfg.NumCounters = 100_000
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = 64 << 20
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = 64
	}
	if cfg.MaxTTL == 0 {
		cfg.MaxTTL = time.Minute
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c, maxTTL: cfg.MaxTTL}, nil
}

func (r *Ristretto) Get(key string) ([]byte, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		r.c.Del(key)
		return nil, false
	}
	return b, true
}

// Set caps ttl at MaxTTL; ttl == 0 uses MaxTTL.
func (r *Ristretto) Set(key string, raw []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > r.maxTTL {
		ttl = r.maxTTL
	}
	r.c.SetWithTTL(key, raw, int64(len(raw)), ttl)
}

func (r *Ristretto) Del(key string) { r.c.Del(key) }
func (r *Ristretto) Clear()         { r.c.Clear() }

// Wait blocks until buffered writes are applied.
func (r *Ristretto) Wait() { r.c.Wait() }

func (r *Ristretto) Close() {
	r.c.Wait()
	r.c.Close()
}

// Metrics exposes ristretto counters when Config.Metrics is set.
func (r *Ristretto) Metrics() *rc.Metrics { return r.c.Metrics }
