package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/audit"
	"github.com/JakeFAU/todo-progress/internal/progress"
	"github.com/JakeFAU/todo-progress/internal/stream"
	"github.com/JakeFAU/todo-progress/internal/todo"
)

const (
	transportSSE = "sse"
	transportWS  = "ws"

	resolveTimeout      = 3 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// ProgressHandler streams simulated upload progress for a todo over SSE or
// WebSocket. Every connection gets its own session; nothing is shared between
// streams.
type ProgressHandler struct {
	store        todo.Store
	recorder     audit.Recorder
	ids          todo.IDGenerator
	clock        todo.Clock
	delay        time.Duration
	writeTimeout time.Duration
	steps        progress.StepSource
	upgrader     websocket.Upgrader
	logger       *zap.Logger

	// sockets counts WebSocket handlers; http.Server.Shutdown does not wait
	// for hijacked connections.
	sockets sync.WaitGroup
}

// NewProgressHandler wires the handler. A nil deps.Audit disables session
// records.
func NewProgressHandler(deps Deps, opts Options, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	writeTimeout := opts.StreamWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &ProgressHandler{
		store:        deps.Todos,
		recorder:     deps.Audit,
		ids:          deps.IDs,
		clock:        deps.Clock,
		delay:        opts.StreamDelay,
		writeTimeout: writeTimeout,
		steps:        opts.Steps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		logger: logger,
	}
}

// ServeSSE handles GET /todos/{id}/progress. Unknown todos get a 404 before
// any stream headers are written.
func (h *ProgressHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	todoID, ok := h.resolve(w, r)
	if !ok {
		return
	}
	conn, err := stream.NewSSEConn(w, r, h.writeTimeout)
	if err != nil {
		h.logger.Warn("open event stream failed", zap.String("todo_id", todoID), zap.Error(err))
		return
	}
	h.run(r.Context(), r, todoID, transportSSE, conn)
}

// ServeWS handles GET /todos/{id}/progress/ws. Each frame is sent as one text
// message; the socket is closed normally after the terminal frame.
func (h *ProgressHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.sockets.Add(1)
	defer h.sockets.Done()

	todoID, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Debug("websocket upgrade failed", zap.String("todo_id", todoID), zap.Error(err))
		return
	}
	conn := stream.NewWSConn(ws, h.writeTimeout)
	ctx, cancel := conn.Watch(r.Context())
	defer cancel()
	h.run(ctx, r, todoID, transportWS, conn)
}

// Wait blocks until every WebSocket stream has finished or ctx is done. Call
// it after http.Server.Shutdown so no new streams can start.
func (h *ProgressHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sockets.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for websocket streams: %w", ctx.Err())
	}
}

func (h *ProgressHandler) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	todoID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
	defer cancel()
	if _, err := h.store.Get(ctx, todoID); err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Todo not found")
			return "", false
		}
		h.logger.Error("resolve todo failed", zap.String("todo_id", todoID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load todo")
		return "", false
	}
	return todoID, true
}

func (h *ProgressHandler) run(ctx context.Context, r *http.Request, todoID, transport string, conn stream.Conn) {
	sessionID, err := h.ids.NewID()
	if err != nil {
		sessionID = RequestIDFromContext(r.Context())
		h.logger.Warn("generate session id failed, using request id",
			zap.String("request_id", sessionID), zap.Error(err))
	}
	logger := h.logger.With(
		zap.String("session_id", sessionID),
		zap.String("todo_id", todoID),
		zap.String("transport", transport),
	)
	sess, err := stream.NewSession(todoID, conn, stream.Config{
		Delay:     h.delay,
		Steps:     h.steps,
		Transport: transport,
		Logger:    logger.Named("stream"),
	})
	if err != nil {
		logger.Error("create stream session failed", zap.Error(err))
		if closeErr := conn.Close(); closeErr != nil {
			logger.Debug("close stream connection", zap.Error(closeErr))
		}
		return
	}

	startedAt := h.clock.Now()
	logger.Debug("progress stream started")
	res := sess.Run(ctx)
	h.logResult(logger, res)

	if h.recorder == nil {
		return
	}
	if sessionID == "" {
		logger.Warn("audit record skipped: no session id")
		return
	}
	rec := audit.Record{
		SessionID:  sessionID,
		SubjectID:  todoID,
		Transport:  transport,
		Outcome:    string(res.Outcome),
		Frames:     res.Frames,
		StartedAt:  startedAt.UTC(),
		DurationMS: res.Duration.Milliseconds(),
		RequestID:  RequestIDFromContext(r.Context()),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	h.recorder.Submit(rec)
}

func (h *ProgressHandler) logResult(logger *zap.Logger, res stream.Result) {
	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.Int("frames", res.Frames),
		zap.Int64("duration_ms", res.Duration.Milliseconds()),
	}
	switch res.Outcome {
	case stream.OutcomeCompleted:
		logger.Info("progress stream completed", fields...)
	case stream.OutcomeAborted:
		logger.Info("progress stream aborted by client", fields...)
	case stream.OutcomeFaulted:
		logger.Warn("progress stream faulted", append(fields, zap.Error(res.Err))...)
	default:
		logger.Debug("progress stream abandoned", append(fields, zap.Error(res.Err))...)
	}
}
