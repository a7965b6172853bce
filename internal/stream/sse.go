package stream

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var errConnClosed = errors.New("stream connection closed")

// SSEConn writes frames to an HTTP response as a text/event-stream.
type SSEConn struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	done         <-chan struct{}
	writeTimeout time.Duration
	closed       bool
}

// NewSSEConn sends the event-stream headers and flushes them so the client
// sees the stream open before the first frame. A zero writeTimeout disables
// per-frame write deadlines.
func NewSSEConn(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) (*SSEConn, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("flush stream headers: %w", err)
	}
	return &SSEConn{
		w:            w,
		rc:           rc,
		done:         r.Context().Done(),
		writeTimeout: writeTimeout,
	}, nil
}

// WriteFrame writes and flushes one frame.
func (c *SSEConn) WriteFrame(frame []byte) error {
	if c.closed {
		return errConnClosed
	}
	select {
	case <-c.done:
		return ErrClientGone
	default:
	}
	if c.writeTimeout > 0 {
		// Recorders and some wrappers cannot set deadlines; the write still goes out.
		if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return c.classify(err)
		}
	}
	if _, err := c.w.Write(frame); err != nil {
		return c.classify(err)
	}
	if err := c.rc.Flush(); err != nil {
		return c.classify(err)
	}
	return nil
}

// Close marks the connection finished. net/http ends the response when the
// handler returns.
func (c *SSEConn) Close() error {
	c.closed = true
	return nil
}

func (c *SSEConn) classify(err error) error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	default:
	}
	if isDisconnect(err) {
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	}
	return err
}
