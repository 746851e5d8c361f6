package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
)

// healthHook marks the owning conn unhealthy when go-redis reports a broken link.
type healthHook struct {
	healthy *atomic.Bool
}

var _ goredis.Hook = healthHook{}

func (h healthHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		cn, err := next(ctx, network, addr)
		if err != nil && ctx.Err() == nil {
			h.healthy.Store(false)
		}
		return cn, err
	}
}

func (h healthHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		h.observe(err)
		return err
	}
}

func (h healthHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := next(ctx, cmds)
		h.observe(err)
		return err
	}
}

func (h healthHook) observe(err error) {
	if isConnErr(err) {
		h.healthy.Store(false)
	}
}

// isConnErr separates link failures from command-level replies.
// Timeouts are not treated as broken links: a slow command does not warrant a reconnect.
func isConnErr(err error) bool {
	if err == nil || errors.Is(err, goredis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, goredis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return !ne.Timeout()
	}
	return false
}
