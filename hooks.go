package rediscache

import "time"

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking: Reconnected and ReconnectFailed
// run while the manager holds its reconnect lock. Wrap slow sinks with hooks/async.
type Hooks interface {
	// A new connection replaced a missing or unhealthy one.
	// attempt counts successful connects over the manager's lifetime.
	Reconnected(attempt uint64, took time.Duration)

	// Connecting failed; the error was returned to the triggering caller.
	ReconnectFailed(err error)

	// Stored bytes could not be decoded into the caller's shape.
	DecodeFailed(key string, err error)

	// WriteDetached mode refused a write because the queue was full.
	WriteQueueFull(key string)

	// A detached write failed after its caller returned.
	// op ∈ {"set", "remove"}
	DetachedWriteFailed(op, key string, err error)

	// RemoveByPattern or Clear finished. pattern is the glob sent to the store ("" for Clear).
	Swept(pattern string, removed int, err error)

	// FlushDatabase finished on one endpoint.
	EndpointFlushed(endpoint string, db int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Reconnected(uint64, time.Duration)         {}
func (NopHooks) ReconnectFailed(error)                     {}
func (NopHooks) DecodeFailed(string, error)                {}
func (NopHooks) WriteQueueFull(string)                     {}
func (NopHooks) DetachedWriteFailed(string, string, error) {}
func (NopHooks) Swept(string, int, error)                  {}
func (NopHooks) EndpointFlushed(string, int, error)        {}

// MultiHooks fans every event out to hs in order. nil entries are skipped.
func MultiHooks(hs ...Hooks) Hooks {
	out := make(multiHooks, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	switch len(out) {
	case 0:
		return NopHooks{}
	case 1:
		return out[0]
	}
	return out
}

type multiHooks []Hooks

func (m multiHooks) Reconnected(n uint64, took time.Duration) {
	for _, h := range m {
		h.Reconnected(n, took)
	}
}

func (m multiHooks) ReconnectFailed(err error) {
	for _, h := range m {
		h.ReconnectFailed(err)
	}
}

func (m multiHooks) DecodeFailed(key string, err error) {
	for _, h := range m {
		h.DecodeFailed(key, err)
	}
}

func (m multiHooks) WriteQueueFull(key string) {
	for _, h := range m {
		h.WriteQueueFull(key)
	}
}

func (m multiHooks) DetachedWriteFailed(op, key string, err error) {
	for _, h := range m {
		h.DetachedWriteFailed(op, key, err)
	}
}

func (m multiHooks) Swept(pattern string, removed int, err error) {
	for _, h := range m {
		h.Swept(pattern, removed, err)
	}
}

func (m multiHooks) EndpointFlushed(endpoint string, db int, err error) {
	for _, h := range m {
		h.EndpointFlushed(endpoint, db, err)
	}
}
