// Package store defines the store-client capability used by rediscache.
//
// A Dialer turns an opaque connection string into a Conn. A Conn is the single live
// connection the ConnectionManager owns; it hands out database-scoped handles and
// per-endpoint administrative handles. Implementations MUST be safe for concurrent use.
//
// Database handles MUST be byte-for-byte transparent: Get returns exactly the []byte
// previously passed to Set for a key. Expiry is enforced by the store, not the caller.
package store

import (
	"context"
	"errors"
	"time"
)

// DefaultDatabase selects the connection's default logical database.
const DefaultDatabase = -1

// NoExpiry is the remaining TTL GetTTL reports for a key without an expiry.
const NoExpiry time.Duration = -1

var (
	// ErrClosed is returned by handles derived from a Conn that has been closed.
	ErrClosed = errors.New("store: connection closed")
	// ErrUnknownEndpoint is returned by Conn.Server for an address the Conn is not connected to.
	ErrUnknownEndpoint = errors.New("store: unknown endpoint")
)

// Dialer establishes connections. The connection string is passed through unmodified.
type Dialer interface {
	Dial(ctx context.Context, connString string) (Conn, error)
}

// DialFunc adapts a plain function to Dialer.
type DialFunc func(ctx context.Context, connString string) (Conn, error)

func (f DialFunc) Dial(ctx context.Context, connString string) (Conn, error) {
	return f(ctx, connString)
}

// Conn is a live connection to a store instance or cluster.
type Conn interface {
	// Healthy reports whether the connection is usable. Must be cheap (no round trip).
	Healthy() bool

	// Database returns a handle bound to the logical database index.
	// DefaultDatabase selects the connection default.
	Database(index int) (Database, error)

	// Server returns an administrative handle for one endpoint.
	Server(endpoint string) (Server, error)

	// Endpoints lists the addresses this connection talks to, sorted ascending.
	Endpoints(ctx context.Context) ([]string, error)

	// Close releases resources. Safe to call more than once.
	Close() error
}

// Database is a logical-database-scoped view of a Conn.
type Database interface {
	// Index is the logical database this handle addresses (DefaultDatabase allowed).
	Index() int

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetTTL is Get that also reports the key's remaining TTL, or NoExpiry.
	GetTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error)

	// Set stores value with ttl. ttl <= 0 writes an already-expired entry,
	// i.e. the key is absent afterwards.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes key. Missing keys are not an error.
	Del(ctx context.Context, key string) error
}

// Server is an administrative handle for a single endpoint.
type Server interface {
	Endpoint() string

	// Keys streams keys of database db matching the glob pattern to fn.
	// An empty pattern matches every key. The scan is live, not a snapshot:
	// keys written or deleted concurrently may or may not be observed.
	// A non-nil error from fn stops the scan and is returned.
	Keys(ctx context.Context, db int, pattern string, fn func(key string) error) error

	// FlushDatabase removes every key of database db on this endpoint.
	FlushDatabase(ctx context.Context, db int) error
}
