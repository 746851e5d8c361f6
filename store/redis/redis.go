// Package redis implements the store capability on top of go-redis.
//
// A plain redis:// or rediss:// URL yields a single-node connection; a URL carrying
// addr= query parameters is treated as a cluster URL (see go-redis ParseClusterURL).
// Health is tracked without round trips: a go-redis hook flips the connection to
// unhealthy on dial failures and connection-level command errors, after which the
// ConnectionManager replaces it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rediscache/store"
)

var ErrClusterDatabase = errors.New("redis store: cluster mode supports database 0 only")

const defaultScanCount = 100

// Dialer builds go-redis clients from connection strings.
// The zero value is ready to use.
type Dialer struct {
	// Optional hooks to adjust parsed options (pool sizes, timeouts, TLS) before the client is built.
	ConfigureClient  func(*goredis.Options)
	ConfigureCluster func(*goredis.ClusterOptions)

	ScanCount int64 // SCAN COUNT hint; 0 => 100
}

var _ store.Dialer = Dialer{}

// Dial parses connString, builds the client and pings it once.
func (d Dialer) Dial(ctx context.Context, connString string) (store.Conn, error) {
	c, err := d.newConn(connString)
	if err != nil {
		return nil, err
	}
	if err := c.ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func (d Dialer) newConn(connString string) (*conn, error) {
	c := &conn{scanCount: d.ScanCount, dbs: make(map[int]*goredis.Client)}
	if c.scanCount <= 0 {
		c.scanCount = defaultScanCount
	}
	c.healthy.Store(true)
	hook := healthHook{healthy: &c.healthy}

	if IsClusterURL(connString) {
		opts, err := goredis.ParseClusterURL(connString)
		if err != nil {
			return nil, fmt.Errorf("redis cluster url: %w", err)
		}
		if d.ConfigureCluster != nil {
			d.ConfigureCluster(opts)
		}
		c.cluster = goredis.NewClusterClient(opts)
		c.cluster.AddHook(hook)
		return c, nil
	}

	opts, err := goredis.ParseURL(connString)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	if d.ConfigureClient != nil {
		d.ConfigureClient(opts)
	}
	c.base = *opts // NewClient mutates opts; children are cloned from the pristine copy
	c.single = goredis.NewClient(opts)
	c.single.AddHook(hook)
	return c, nil
}

// IsClusterURL reports whether s names more than one seed node via addr= parameters.
func IsClusterURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Query().Has("addr")
}

type conn struct {
	single  *goredis.Client
	base    goredis.Options
	cluster *goredis.ClusterClient

	scanCount int64

	healthy atomic.Bool
	closed  atomic.Bool

	mu  sync.Mutex
	dbs map[int]*goredis.Client // extra single-node databases, owned by conn
}

var _ store.Conn = (*conn)(nil)

func (c *conn) Healthy() bool { return !c.closed.Load() && c.healthy.Load() }

func (c *conn) ping(ctx context.Context) error {
	if c.cluster != nil {
		return c.cluster.Ping(ctx).Err()
	}
	return c.single.Ping(ctx).Err()
}

func (c *conn) Database(index int) (store.Database, error) {
	cmd, err := c.client(index)
	if err != nil {
		return nil, err
	}
	return &database{cmd: cmd, index: index}, nil
}

// client returns the command surface for a logical database.
func (c *conn) client(index int) (goredis.Cmdable, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	if c.cluster != nil {
		if index != store.DefaultDatabase && index != 0 {
			return nil, ErrClusterDatabase
		}
		return c.cluster, nil
	}
	return c.singleDB(index)
}

func (c *conn) singleDB(index int) (*goredis.Client, error) {
	if index == store.DefaultDatabase || index == c.base.DB {
		return c.single, nil
	}
	if index < 0 {
		return nil, fmt.Errorf("redis store: invalid database index %d", index)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dbs == nil {
		return nil, store.ErrClosed
	}
	if cl, ok := c.dbs[index]; ok {
		return cl, nil
	}
	o := c.base
	o.DB = index
	cl := goredis.NewClient(&o)
	cl.AddHook(healthHook{healthy: &c.healthy})
	c.dbs[index] = cl
	return cl, nil
}

func (c *conn) Server(endpoint string) (store.Server, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	if c.cluster == nil && endpoint != c.base.Addr {
		return nil, store.ErrUnknownEndpoint
	}
	return &server{c: c, addr: endpoint}, nil
}

func (c *conn) Endpoints(ctx context.Context) ([]string, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	if c.cluster == nil {
		return []string{c.base.Addr}, nil
	}
	var (
		mu  sync.Mutex
		out []string
	)
	err := c.cluster.ForEachMaster(ctx, func(_ context.Context, cl *goredis.Client) error {
		mu.Lock()
		out = append(out, cl.Options().Addr)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// master finds the cluster master client serving addr.
func (c *conn) master(ctx context.Context, addr string) (*goredis.Client, error) {
	var (
		mu    sync.Mutex
		found *goredis.Client
	)
	err := c.cluster.ForEachMaster(ctx, func(_ context.Context, cl *goredis.Client) error {
		if cl.Options().Addr == addr {
			mu.Lock()
			found = cl
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, store.ErrUnknownEndpoint
	}
	return found, nil
}

// Close is safe to call multiple times; repeated calls are no-ops.
func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.healthy.Store(false)

	var errs []error
	if c.cluster != nil {
		errs = append(errs, ignoreClosed(c.cluster.Close()))
		return errors.Join(errs...)
	}
	c.mu.Lock()
	for _, cl := range c.dbs {
		errs = append(errs, ignoreClosed(cl.Close()))
	}
	c.dbs = nil
	c.mu.Unlock()
	errs = append(errs, ignoreClosed(c.single.Close()))
	return errors.Join(errs...)
}

func ignoreClosed(err error) error {
	if errors.Is(err, goredis.ErrClosed) {
		return nil
	}
	return err
}
