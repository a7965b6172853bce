package stream

import (
	"errors"
	"net"
	"syscall"
)

// ErrClientGone marks a write that failed because the client disconnected.
// Sessions treat it as an abort, never as a fault.
var ErrClientGone = errors.New("client disconnected")

// Conn is the connection handle a Session writes to. A Conn is used by a
// single goroutine.
type Conn interface {
	// WriteFrame writes one encoded frame and pushes it to the client.
	WriteFrame(frame []byte) error
	// Close releases the connection. It must be safe to call more than once.
	Close() error
}

// isDisconnect reports whether err is how the OS reports a peer that hung up.
func isDisconnect(err error) bool {
	return errors.Is(err, ErrClientGone) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
