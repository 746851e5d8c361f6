package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rediscache/store"
)

func TestIsClusterURL(t *testing.T) {
	cases := map[string]bool{
		"redis://localhost:6379/0":                                       false,
		"rediss://user:pw@cache.internal:6380":                           false,
		"redis://localhost:7000?addr=localhost:7001&addr=localhost:7002": true,
		"::not a url":                                                    false,
	}
	for in, want := range cases {
		if got := IsClusterURL(in); got != want {
			t.Fatalf("IsClusterURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDialRejectsMalformedConnectionString(t *testing.T) {
	_, err := Dialer{}.Dial(context.Background(), "memcached://nope")
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d := Dialer{ConfigureClient: func(o *goredis.Options) {
		o.MaxRetries = -1
		o.DialTimeout = 500 * time.Millisecond
	}}
	if _, err := d.Dial(ctx, "redis://127.0.0.1:1/0"); err == nil {
		t.Fatalf("expected dial failure against a closed port")
	}
}

func TestSingleNodeHandlesWithoutServer(t *testing.T) {
	c, err := Dialer{}.newConn("redis://127.0.0.1:6399/2")
	if err != nil {
		t.Fatalf("newConn: %v", err)
	}
	defer c.Close()

	eps, err := c.Endpoints(context.Background())
	if err != nil || len(eps) != 1 || eps[0] != "127.0.0.1:6399" {
		t.Fatalf("Endpoints = %v err=%v", eps, err)
	}
	if _, err := c.Server("10.0.0.1:6379"); !errors.Is(err, store.ErrUnknownEndpoint) {
		t.Fatalf("want ErrUnknownEndpoint, got %v", err)
	}

	def, err := c.singleDB(store.DefaultDatabase)
	if err != nil || def != c.single {
		t.Fatalf("default database should reuse the base client")
	}
	same, _ := c.singleDB(2)
	if same != c.single {
		t.Fatalf("database from the URL should reuse the base client")
	}
	other, err := c.singleDB(5)
	if err != nil {
		t.Fatalf("singleDB(5): %v", err)
	}
	if other.Options().DB != 5 {
		t.Fatalf("child client DB = %d, want 5", other.Options().DB)
	}
	again, _ := c.singleDB(5)
	if again != other {
		t.Fatalf("child client not reused")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if c.Healthy() {
		t.Fatalf("closed conn reports healthy")
	}
	if _, err := c.Database(0); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestIsConnErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{goredis.Nil, false},
		{context.DeadlineExceeded, false},
		{goredis.ErrClosed, true},
		{io.EOF, true},
		{fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{timeoutErr{}, false},
		{errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"), false},
	}
	for _, tc := range cases {
		if got := isConnErr(tc.err); got != tc.want {
			t.Fatalf("isConnErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestHealthHookFlipsOnBrokenLink(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	h := healthHook{healthy: &healthy}

	ok := h.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	_ = ok(context.Background(), nil)
	if !healthy.Load() {
		t.Fatalf("a miss must not mark the conn unhealthy")
	}

	broken := h.ProcessHook(func(context.Context, goredis.Cmder) error { return io.EOF })
	_ = broken(context.Background(), nil)
	if healthy.Load() {
		t.Fatalf("EOF should mark the conn unhealthy")
	}
}

func TestRemainingTTL(t *testing.T) {
	cases := []struct {
		in     time.Duration
		want   time.Duration
		wantOK bool
	}{
		{1500 * time.Millisecond, 1500 * time.Millisecond, true},
		{-1, store.NoExpiry, true},
		{-2, 0, false},
	}
	for _, tc := range cases {
		got, ok := remainingTTL(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("remainingTTL(%v) = %v %v, want %v %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
