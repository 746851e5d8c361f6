package rediscache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rediscache/store"
	storeredis "github.com/unkn0wn-root/rediscache/store/redis"
)

// ManagerOptions configure a ConnectionManager.
type ManagerOptions struct {
	// Opaque connection string handed to Dialer unmodified.
	ConnectionString string

	Dialer store.Dialer // nil => store/redis.Dialer{}
	Logger Logger       // nil => NopLogger
	Hooks  Hooks        // nil => NopHooks
}

// ConnectionManager owns the single shared connection to the store.
//
// The connection is created lazily on first use and replaced when it reports
// unhealthy. Readers take a lock-free fast path; only reconnection contends, and
// the double-checked slow path guarantees at most one dial in flight and at most
// one live connection visible to callers.
type ConnectionManager struct {
	dialer store.Dialer
	log    Logger
	hooks  Hooks

	connString atomic.Value // string
	conn       atomic.Pointer[handle]
	reconnects atomic.Uint64

	mu     sync.Mutex // serializes reconnects and Close
	closed bool
}

// handle boxes the interface so it fits atomic.Pointer.
type handle struct{ store.Conn }

func NewConnectionManager(opts ManagerOptions) (*ConnectionManager, error) {
	m := &ConnectionManager{
		dialer: opts.Dialer,
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
	if m.dialer == nil {
		m.dialer = storeredis.Dialer{}
	}
	m.connString.Store(opts.ConnectionString)
	return m, nil
}

// SetConnectionString replaces the connection string used by the next (re)connect.
// It does not connect and does not drop a healthy connection.
func (m *ConnectionManager) SetConnectionString(s string) { m.connString.Store(s) }

func (m *ConnectionManager) ConnectionString() string { return m.connString.Load().(string) }

// Reconnects returns how many connections have been established so far.
func (m *ConnectionManager) Reconnects() uint64 { return m.reconnects.Load() }

// Database returns a handle for the logical database index (DefaultDatabase for the
// connection default), connecting first if needed.
func (m *ConnectionManager) Database(ctx context.Context, index int) (store.Database, error) {
	c, err := m.connection(ctx)
	if err != nil {
		return nil, err
	}
	return c.Database(index)
}

// Server returns an administrative handle for one endpoint of the current connection.
func (m *ConnectionManager) Server(ctx context.Context, endpoint string) (store.Server, error) {
	c, err := m.connection(ctx)
	if err != nil {
		return nil, err
	}
	return c.Server(endpoint)
}

// Endpoints lists the endpoints of the current connection, connecting first if needed.
func (m *ConnectionManager) Endpoints(ctx context.Context) ([]string, error) {
	c, err := m.connection(ctx)
	if err != nil {
		return nil, err
	}
	return c.Endpoints(ctx)
}

// FlushDatabase removes every key of database index on every endpoint.
// All endpoints are attempted; failures come back joined as *EndpointError values.
// Endpoints flushed before a failure stay flushed.
func (m *ConnectionManager) FlushDatabase(ctx context.Context, index int) error {
	eps, err := m.Endpoints(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, ep := range eps {
		err := m.flushEndpoint(ctx, ep, index)
		m.hooks.EndpointFlushed(ep, index, err)
		if err != nil {
			m.log.Error("flush database failed", Fields{"endpoint": ep, "db": index, "err": err})
			errs = append(errs, &EndpointError{Endpoint: ep, Err: err})
			continue
		}
		m.log.Info("flushed database", Fields{"endpoint": ep, "db": index})
	}
	return errors.Join(errs...)
}

func (m *ConnectionManager) flushEndpoint(ctx context.Context, ep string, index int) error {
	srv, err := m.Server(ctx, ep)
	if err != nil {
		return err
	}
	return srv.FlushDatabase(ctx, index)
}

// Close releases the connection if one exists. Safe to call multiple times.
// Every later call on the manager returns ErrClosed.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	h := m.conn.Swap(nil)
	if h == nil {
		return nil
	}
	return h.Close()
}

func (m *ConnectionManager) connection(ctx context.Context) (store.Conn, error) {
	if h := m.conn.Load(); h != nil && h.Healthy() {
		return h.Conn, nil
	}
	return m.reconnect(ctx)
}

func (m *ConnectionManager) reconnect(ctx context.Context) (store.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	// another caller may have repaired the connection while we waited
	h := m.conn.Load()
	if h != nil && h.Healthy() {
		return h.Conn, nil
	}
	if h != nil {
		m.log.Warn("replacing unhealthy connection", nil)
		m.conn.Store(nil)
		if err := h.Close(); err != nil {
			m.log.Warn("closing stale connection failed", Fields{"err": err})
		}
	}

	start := time.Now()
	c, err := m.dialer.Dial(ctx, m.ConnectionString())
	if err != nil {
		m.log.Error("connect failed", Fields{"err": err})
		m.hooks.ReconnectFailed(err)
		return nil, &ConnectionError{Op: "connect", Err: err}
	}
	took := time.Since(start)
	n := m.reconnects.Add(1)
	m.conn.Store(&handle{Conn: c})
	m.log.Info("connected", Fields{"attempt": n, "took": took})
	m.hooks.Reconnected(n, took)
	return c, nil
}
