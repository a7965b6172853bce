package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGrace bounds how long Close waits to deliver the close message.
const closeGrace = time.Second

// WSConn writes frames to a WebSocket, one text message per frame.
//
// A background read loop discards client messages and notices when the peer
// goes away. Use Watch to turn that into a cancellation token for a Session.
type WSConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	gone      chan struct{}
	goneOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewWSConn takes ownership of an upgraded connection and starts its read loop.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	c := &WSConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		gone:         make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *WSConn) readLoop() {
	defer c.markGone()
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *WSConn) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

// Gone is closed once the peer disconnects or the connection is closed.
func (c *WSConn) Gone() <-chan struct{} {
	return c.gone
}

// Watch returns a context that is canceled when parent is done or the peer
// goes away.
func (c *WSConn) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.gone:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// WriteFrame sends one frame as a text message.
func (c *WSConn) WriteFrame(frame []byte) error {
	select {
	case <-c.gone:
		return ErrClientGone
	default:
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return c.classify(err)
		}
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return c.classify(err)
	}
	return nil
}

// Close sends a normal close message and releases the socket.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil &&
			!errors.Is(err, websocket.ErrCloseSent) {
			c.closeErr = fmt.Errorf("send close message: %w", err)
		}
		if err := c.conn.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *WSConn) classify(err error) error {
	select {
	case <-c.gone:
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	default:
	}
	if errors.Is(err, websocket.ErrCloseSent) || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) || isDisconnect(err) {
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	}
	return err
}
