package rediscache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/rediscache/store"
	"github.com/unkn0wn-root/rediscache/store/local"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recHooks records hook events for assertions.
type recHooks struct {
	NopHooks
	mu             sync.Mutex
	reconnects     int
	reconnectFails int
	decodeFails    int
	queueFull      int
	detachedFails  int
	swept          []string
	flushed        []string
	flushFailed    []string
}

func (h *recHooks) Reconnected(uint64, time.Duration) {
	h.mu.Lock()
	h.reconnects++
	h.mu.Unlock()
}

func (h *recHooks) ReconnectFailed(error) {
	h.mu.Lock()
	h.reconnectFails++
	h.mu.Unlock()
}

func (h *recHooks) DecodeFailed(string, error) {
	h.mu.Lock()
	h.decodeFails++
	h.mu.Unlock()
}

func (h *recHooks) WriteQueueFull(string) {
	h.mu.Lock()
	h.queueFull++
	h.mu.Unlock()
}

func (h *recHooks) DetachedWriteFailed(string, string, error) {
	h.mu.Lock()
	h.detachedFails++
	h.mu.Unlock()
}

func (h *recHooks) Swept(pattern string, _ int, _ error) {
	h.mu.Lock()
	h.swept = append(h.swept, pattern)
	h.mu.Unlock()
}

func (h *recHooks) EndpointFlushed(ep string, _ int, err error) {
	h.mu.Lock()
	if err != nil {
		h.flushFailed = append(h.flushFailed, ep)
	} else {
		h.flushed = append(h.flushed, ep)
	}
	h.mu.Unlock()
}

func (h *recHooks) snapshot() recHooks {
	h.mu.Lock()
	defer h.mu.Unlock()
	return recHooks{
		reconnects:     h.reconnects,
		reconnectFails: h.reconnectFails,
		decodeFails:    h.decodeFails,
		queueFull:      h.queueFull,
		detachedFails:  h.detachedFails,
		swept:          append([]string(nil), h.swept...),
		flushed:        append([]string(nil), h.flushed...),
		flushFailed:    append([]string(nil), h.flushFailed...),
	}
}

// gatedDialer wraps a store so tests can block writes or inject failures.
// Fields must be set before the first Dial.
type gatedDialer struct {
	inner store.Dialer

	entered  chan struct{} // receives once per Set that reached the gate
	gate     chan struct{} // Set blocks until closed
	setErr   error
	keysErr  error
	flushErr map[string]error // by endpoint
}

func (d *gatedDialer) Dial(ctx context.Context, s string) (store.Conn, error) {
	c, err := d.inner.Dial(ctx, s)
	if err != nil {
		return nil, err
	}
	return &gatedConn{Conn: c, d: d}, nil
}

type gatedConn struct {
	store.Conn
	d *gatedDialer
}

func (c *gatedConn) Database(index int) (store.Database, error) {
	db, err := c.Conn.Database(index)
	if err != nil {
		return nil, err
	}
	return &gatedDB{Database: db, d: c.d}, nil
}

func (c *gatedConn) Server(ep string) (store.Server, error) {
	s, err := c.Conn.Server(ep)
	if err != nil {
		return nil, err
	}
	return &gatedServer{Server: s, d: c.d}, nil
}

type gatedDB struct {
	store.Database
	d *gatedDialer
}

func (db *gatedDB) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if db.d.entered != nil {
		db.d.entered <- struct{}{}
	}
	if db.d.gate != nil {
		<-db.d.gate
	}
	if db.d.setErr != nil {
		return db.d.setErr
	}
	return db.Database.Set(ctx, key, value, ttl)
}

type gatedServer struct {
	store.Server
	d *gatedDialer
}

func (s *gatedServer) Keys(ctx context.Context, db int, pattern string, fn func(string) error) error {
	if s.d.keysErr != nil {
		return s.d.keysErr
	}
	return s.Server.Keys(ctx, db, pattern, fn)
}

func (s *gatedServer) FlushDatabase(ctx context.Context, db int) error {
	if err := s.d.flushErr[s.Endpoint()]; err != nil {
		return err
	}
	return s.Server.FlushDatabase(ctx, db)
}

type env struct {
	cl    *local.Cluster
	clock *fakeClock
	hooks *recHooks
	mgr   *ConnectionManager
}

func newEnv(t *testing.T, endpoints int) *env {
	return newEnvWithDialer(t, endpoints, nil)
}

// newEnvWithDialer builds a local cluster; wrap, when non-nil, decorates its dialer.
func newEnvWithDialer(t *testing.T, endpoints int, wrap func(store.Dialer) store.Dialer) *env {
	t.Helper()
	clock := newFakeClock()
	cl, err := local.New(local.Config{Endpoints: endpoints, Now: clock.Now})
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	t.Cleanup(func() { _ = cl.Close() })

	var d store.Dialer = cl
	if wrap != nil {
		d = wrap(cl)
	}
	hooks := &recHooks{}
	mgr, err := NewConnectionManager(ManagerOptions{
		ConnectionString: "local://test",
		Dialer:           d,
		Hooks:            hooks,
	})
	if err != nil {
		t.Fatalf("NewConnectionManager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return &env{cl: cl, clock: clock, hooks: hooks, mgr: mgr}
}

func (e *env) newCache(t *testing.T, mutate func(*Options)) Cache {
	t.Helper()
	opts := Options{Manager: e.mgr, Hooks: e.hooks}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

// mapNear is a synchronous NearCache for deterministic tests.
type mapNear struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapNear() *mapNear { return &mapNear{m: make(map[string][]byte)} }

func (n *mapNear) Get(k string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.m[k]
	return b, ok
}

func (n *mapNear) Set(k string, raw []byte, _ time.Duration) {
	n.mu.Lock()
	n.m[k] = raw
	n.mu.Unlock()
}

func (n *mapNear) Del(k string) {
	n.mu.Lock()
	delete(n.m, k)
	n.mu.Unlock()
}

func (n *mapNear) Clear() {
	n.mu.Lock()
	n.m = make(map[string][]byte)
	n.mu.Unlock()
}

func (n *mapNear) Close() {}

func (n *mapNear) has(k string) bool {
	_, ok := n.Get(k)
	return ok
}

// ttlNear is a NearCache that honours TTLs against a fake clock, capped at limit.
type ttlNear struct {
	mapNear
	clock *fakeClock
	limit time.Duration
	exp   map[string]time.Time
}

func newTTLNear(clock *fakeClock, limit time.Duration) *ttlNear {
	return &ttlNear{
		mapNear: mapNear{m: make(map[string][]byte)},
		clock:   clock,
		limit:   limit,
		exp:     make(map[string]time.Time),
	}
}

func (n *ttlNear) Get(k string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.clock.Now().Before(n.exp[k]) {
		delete(n.m, k)
		return nil, false
	}
	b, ok := n.m[k]
	return b, ok
}

func (n *ttlNear) Set(k string, raw []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > n.limit {
		ttl = n.limit
	}
	n.mu.Lock()
	n.m[k] = raw
	n.exp[k] = n.clock.Now().Add(ttl)
	n.mu.Unlock()
}
