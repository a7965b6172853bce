package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/audit"
	"github.com/JakeFAU/todo-progress/internal/metrics"
	"github.com/JakeFAU/todo-progress/internal/openapi"
	"github.com/JakeFAU/todo-progress/internal/policy/ratelimit"
	"github.com/JakeFAU/todo-progress/internal/progress"
	"github.com/JakeFAU/todo-progress/internal/todo"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxUploadBytes = 32 << 20
	readyTimeout          = 2 * time.Second
	maxRequestIDLength    = 128
)

// Deps are the collaborators the HTTP layer talks to. Publisher, Audit and
// Ready are optional.
type Deps struct {
	Todos     todo.Store
	Blobs     todo.BlobStore
	Publisher todo.Publisher
	Audit     audit.Recorder
	Validator *todo.Validator
	IDs       todo.IDGenerator
	Clock     todo.Clock
	Ready     func(ctx context.Context) error
}

// Options tune request handling. Zero values fall back to defaults.
type Options struct {
	RequestTimeout     time.Duration
	MaxUploadBytes     int64
	StreamDelay        time.Duration
	StreamWriteTimeout time.Duration
	// Steps overrides the random progress walk.
	Steps progress.StepSource
	// CheckOrigin is passed to the WebSocket upgrader; nil accepts same-origin
	// requests only.
	CheckOrigin func(r *http.Request) bool
	// StreamLimiter admits progress streams per client address. Nil admits
	// everything.
	StreamLimiter *ratelimit.Limiter
}

// Server wires HTTP handlers to the todo store and the progress streams.
type Server struct {
	router   chi.Router
	todos    *TodoHandler
	progress *ProgressHandler
	ready    func(ctx context.Context) error
	docJSON  []byte
	docYAML  []byte
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options, logger *zap.Logger) (*Server, error) {
	if deps.Todos == nil {
		return nil, errors.New("todo store is required")
	}
	if deps.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("id generator is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Validator == nil {
		v, err := todo.NewValidator()
		if err != nil {
			return nil, fmt.Errorf("build validator: %w", err)
		}
		deps.Validator = v
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	doc, err := openapi.Build()
	if err != nil {
		return nil, fmt.Errorf("build openapi document: %w", err)
	}
	docJSON, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("render openapi json: %w", err)
	}
	docYAML, err := doc.YAML()
	if err != nil {
		return nil, fmt.Errorf("render openapi yaml: %w", err)
	}

	s := &Server{
		todos:    NewTodoHandler(deps, opts.MaxUploadBytes, logger.Named("todos")),
		progress: NewProgressHandler(deps, opts, logger.Named("progress")),
		ready:    deps.Ready,
		docJSON:  docJSON,
		docYAML:  docYAML,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger.Named("http")))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		r.Get("/docs", s.docsJSON)
		r.Get("/docs.yaml", s.docsYAML)
	})

	r.Route("/todos", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(opts.RequestTimeout))
			r.Get("/", s.todos.List)
			r.Post("/", s.todos.Create)
			r.Get("/{id}", s.todos.Get)
			r.Put("/{id}", s.todos.Update)
			r.Delete("/{id}", s.todos.Delete)
			r.Post("/{id}/upload", s.todos.Upload)
		})
		// Streams outlive any request timeout.
		r.With(streamLimitMiddleware(opts.StreamLimiter, transportSSE, logger)).
			Get("/{id}/progress", s.progress.ServeSSE)
		r.With(streamLimitMiddleware(opts.StreamLimiter, transportWS, logger)).
			Get("/{id}/progress/ws", s.progress.ServeWS)
	})

	s.router = r
	return s, nil
}

// WaitStreams blocks until hijacked progress streams have finished or ctx is
// done.
func (s *Server) WaitStreams(ctx context.Context) error {
	return s.progress.Wait(ctx)
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) docsJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(s.docJSON); err != nil {
		s.logger.Debug("write openapi json failed", zap.Error(err))
	}
}

func (s *Server) docsYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(s.docYAML); err != nil {
		s.logger.Debug("write openapi yaml failed", zap.Error(err))
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// streamLimitMiddleware refuses progress streams from a client address that
// opens them faster than l allows.
func streamLimitMiddleware(l *ratelimit.Limiter, transport string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !l.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientAddr(r)
			ok, retry := l.Allow(key)
			if !ok {
				metrics.ObserveStreamRejected(transport)
				logger.Debug("progress stream rate limited",
					zap.String("client", key),
					zap.String("transport", transport),
					zap.Duration("retry_after", retry),
				)
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		rw.status = http.StatusSwitchingProtocols
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

// Unwrap lets http.ResponseController reach the underlying writer for write
// deadlines.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Debug("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
