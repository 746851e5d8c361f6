// Package local is an in-process, multi-endpoint store built on bigcache.
//
// A Cluster plays the part of the remote server: data lives in the Cluster and
// survives reconnects, while every Dial hands out a fresh Conn. Keys are routed to
// endpoints by xxhash, each endpoint holds one bigcache per logical database, and
// per-entry TTLs are enforced on read through an expiry envelope.
//
// Disconnect, FailDials and Dials make the Cluster usable as an instrumented stub:
//
//	cl, _ := local.New(local.Config{Endpoints: 3})
//	mgr, _ := rediscache.NewConnectionManager(rediscache.ManagerOptions{
//	    ConnectionString: "local://test",
//	    Dialer:           cl,
//	})
package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/rediscache/store"
)

// Scheme is the connection string prefix accepted by Cluster.Dial.
const Scheme = "local://"

var (
	// ErrDisconnected is returned by handles of a Conn dropped with Disconnect.
	ErrDisconnected = errors.New("local: connection dropped")
	// ErrDBRange mirrors the server error for an out-of-range SELECT.
	ErrDBRange = errors.New("local: DB index is out of range")
)

type Config struct {
	Endpoints          int           // simulated endpoints; 0 => 1
	Databases          int           // logical databases per endpoint; 0 => 16
	Shards             int           // bigcache shards per database (power of two); 0 => 16
	MaxLifetime        time.Duration // bigcache LifeWindow, upper bound for any TTL; 0 => 7d
	HardMaxCacheSizeMB int           // per database; 0 = unlimited
	Now                func() time.Time
}

type Cluster struct {
	cfg    Config
	now    func() time.Time
	nodes  []*node
	byAddr map[string]*node
	addrs  []string

	mu      sync.Mutex
	conns   []*conn
	dialErr error
	closed  bool

	dials atomic.Int64
}

var _ store.Dialer = (*Cluster)(nil)

func New(cfg Config) (*Cluster, error) {
	if cfg.Endpoints <= 0 {
		cfg.Endpoints = 1
	}
	if cfg.Databases <= 0 {
		cfg.Databases = 16
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 16
	}
	if cfg.Shards&(cfg.Shards-1) != 0 {
		return nil, fmt.Errorf("local: shards must be a power of two, got %d", cfg.Shards)
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 7 * 24 * time.Hour
	}
	cl := &Cluster{
		cfg:    cfg,
		now:    cfg.Now,
		byAddr: make(map[string]*node, cfg.Endpoints),
	}
	if cl.now == nil {
		cl.now = time.Now
	}
	for i := 0; i < cfg.Endpoints; i++ {
		n := &node{addr: fmt.Sprintf("local-%d:6379", i), cl: cl, dbs: make(map[int]*bc.BigCache)}
		cl.nodes = append(cl.nodes, n)
		cl.byAddr[n.addr] = n
		cl.addrs = append(cl.addrs, n.addr)
	}
	sort.Strings(cl.addrs)
	return cl, nil
}

// Dial returns a new healthy Conn. connString must start with Scheme.
func (cl *Cluster) Dial(ctx context.Context, connString string) (store.Conn, error) {
	cl.dials.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(connString, Scheme) {
		return nil, fmt.Errorf("local: connection string must start with %q", Scheme)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return nil, store.ErrClosed
	}
	if cl.dialErr != nil {
		return nil, cl.dialErr
	}
	c := &conn{cl: cl}
	c.healthy.Store(true)
	cl.conns = append(cl.conns, c)
	return c, nil
}

// Dials is the number of Dial calls observed, successful or not.
func (cl *Cluster) Dials() int64 { return cl.dials.Load() }

// Disconnect drops every live Conn: they report unhealthy and their handles fail.
// Stored data is kept.
func (cl *Cluster) Disconnect() {
	cl.mu.Lock()
	for _, c := range cl.conns {
		c.healthy.Store(false)
	}
	cl.conns = nil
	cl.mu.Unlock()
}

// FailDials makes subsequent Dial calls return err. nil restores normal dialing.
func (cl *Cluster) FailDials(err error) {
	cl.mu.Lock()
	cl.dialErr = err
	cl.mu.Unlock()
}

// Close releases every bigcache. Data is lost.
func (cl *Cluster) Close() error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return nil
	}
	cl.closed = true
	for _, c := range cl.conns {
		c.healthy.Store(false)
	}
	cl.conns = nil
	cl.mu.Unlock()

	var errs []error
	for _, n := range cl.nodes {
		n.mu.Lock()
		for _, c := range n.dbs {
			errs = append(errs, c.Close())
		}
		n.dbs = nil
		n.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (cl *Cluster) route(key string) *node {
	return cl.nodes[xxhash.Sum64String(key)%uint64(len(cl.nodes))]
}

func (cl *Cluster) checkIndex(index int) error {
	if index == store.DefaultDatabase {
		return nil
	}
	if index < 0 || index >= cl.cfg.Databases {
		return ErrDBRange
	}
	return nil
}

type node struct {
	addr string
	cl   *Cluster

	mu  sync.Mutex
	dbs map[int]*bc.BigCache
}

func (n *node) db(index int) (*bc.BigCache, error) {
	if index == store.DefaultDatabase {
		index = 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dbs == nil {
		return nil, store.ErrClosed
	}
	if c, ok := n.dbs[index]; ok {
		return c, nil
	}
	conf := bc.DefaultConfig(n.cl.cfg.MaxLifetime)
	conf.Shards = n.cl.cfg.Shards
	conf.CleanWindow = 0
	conf.MaxEntriesInWindow = 1024
	conf.MaxEntrySize = 256
	conf.HardMaxCacheSize = n.cl.cfg.HardMaxCacheSizeMB
	conf.Verbose = false
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	n.dbs[index] = c
	return c, nil
}
