package rediscache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every ConnectionManager or Cache operation after Close.
	ErrClosed = errors.New("rediscache: closed")
	// ErrWriteQueueFull is returned in WriteDetached mode when the write queue has no room.
	ErrWriteQueueFull = errors.New("rediscache: detached write queue full")
	// ErrNoManager is returned by New when Options.Manager is nil.
	ErrNoManager = errors.New("rediscache: connection manager is required")
)

// ConnectionError reports a failed connect or reconnect. It is never retried
// internally; the next call that needs a connection dials again.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rediscache: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SerializationError reports a value that could not be encoded, or stored bytes
// that could not be decoded into the requested shape.
type SerializationError struct {
	Key string
	Op  string // "encode" | "decode"
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("rediscache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// EndpointError ties a per-endpoint administrative failure to its address.
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("rediscache: endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
