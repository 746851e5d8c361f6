package rediscache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/rediscache/codec"
	"github.com/unkn0wn-root/rediscache/store"
)

const (
	// DefaultDatabase selects the connection's default logical database.
	DefaultDatabase = store.DefaultDatabase
	// DefaultTTL applies to Set and to SetWithTTL callers that go through config defaults.
	DefaultTTL = 60 * time.Minute
)

// WriteMode decides whether Set and Remove wait for the store.
type WriteMode int

const (
	// WriteAwait performs writes synchronously and returns the store's error.
	WriteAwait WriteMode = iota
	// WriteDetached queues writes on a worker pool and returns immediately.
	// Failures are reported through Hooks and the Logger; Wait blocks until the queue drains.
	WriteDetached
)

func (m WriteMode) String() string {
	switch m {
	case WriteAwait:
		return "await"
	case WriteDetached:
		return "detached"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "await", "sync":
		return WriteAwait, nil
	case "detached", "async":
		return WriteDetached, nil
	default:
		return 0, fmt.Errorf("rediscache: unknown write mode %q", s)
	}
}

// Cache is the public cache API over a remote store.
// Absence is never an error: misses report found=false with a nil error.
type Cache interface {
	// Get decodes the value at key into dst (a non-nil pointer).
	Get(ctx context.Context, key string, dst any) (found bool, err error)

	// Set writes value with the default TTL. A nil value is a no-op.
	Set(ctx context.Context, key string, value any) error
	// SetWithTTL writes value with ttl. A nil value is a no-op; ttl <= 0 leaves the key absent.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error
	// SetSync is SetWithTTL that always waits for the store, whatever the write mode.
	SetSync(ctx context.Context, key string, value any, ttl time.Duration) error

	IsSet(ctx context.Context, key string) (bool, error)

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// RemoveByPattern deletes every key containing pattern, endpoint by endpoint.
	// Not atomic with respect to concurrent writers.
	RemoveByPattern(ctx context.Context, pattern string) (removed int, err error)

	// Clear deletes every key of the active database, endpoint by endpoint.
	// Administrative: it walks the whole keyspace and is not meant for hot paths.
	Clear(ctx context.Context) (removed int, err error)

	// Wait blocks until detached writes queued so far have completed. No-op in WriteAwait mode.
	Wait(ctx context.Context) error

	// Close drains detached writes and releases the near cache. Every later
	// operation returns ErrClosed. The ConnectionManager is borrowed and stays open.
	Close(ctx context.Context) error
}

// NearCache is an optional in-process L1 holding raw encoded values.
// See package nearcache for a ristretto-backed implementation.
type NearCache interface {
	Get(key string) ([]byte, bool)
	// Set may cap ttl; ttl == 0 means "use the near cache's own cap".
	Set(key string, raw []byte, ttl time.Duration)
	Del(key string)
	Clear()
	Close()
}

// Options tune the cache. Only Manager is required.
type Options struct {
	Manager *ConnectionManager // required; shared, not owned

	Serializer codec.Serializer // nil => codec.JSON{}
	Database   *int             // logical database; nil => DefaultDatabase (see DB)
	DefaultTTL time.Duration    // 0 => 60m
	OpTimeout  time.Duration    // per store round trip; 0 => none

	WriteMode    WriteMode // default WriteAwait
	WriteWorkers int       // WriteDetached only; 0 => 4
	WriteQueue   int       // WriteDetached only, split across workers; 0 => 1024

	Sweeper   Sweeper   // nil => scan endpoints and delete one by one
	NearCache NearCache // nil => disabled
	Logger    Logger    // nil => NopLogger
	Hooks     Hooks     // nil => NopHooks
}

// DB returns a pointer to index for Options.Database.
func DB(index int) *int { return &index }

func New(opts Options) (Cache, error) {
	return newCache(opts)
}

// GetAs is Get for a statically known result shape.
//
//	u, ok, err := rediscache.GetAs[User](ctx, c, "user:1")
//
// Serializers that decode into message pointers (codec.Protobuf) need Get instead.
func GetAs[V any](ctx context.Context, c Cache, key string) (V, bool, error) {
	var v V
	ok, err := c.Get(ctx, key, &v)
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	return v, true, nil
}
