// Package stream delivers a progress feed to one client over one long-lived
// connection.
//
// A Session pulls events from a progress.Emitter, encodes each as a
// server-sent-events frame, writes it to a Conn and waits a fixed delay before
// the next one. Sessions are independent: each owns its emitter, frame id
// counter and timer, and nothing is shared between them.
//
// Lifecycle:
//
//	OPEN -> EMITTING ... -> COMPLETING -> CLOSED
//	OPEN|EMITTING -> ABORTED -> CLOSED   (client went away)
//	OPEN|EMITTING -> FAULTED -> CLOSED   (encode/write failure)
//
// The caller's context is the session's cancellation token. For SSE it is the
// request context, which net/http cancels when the client disconnects; the
// WebSocket adapter derives one from its read loop via WSConn.Watch.
package stream
