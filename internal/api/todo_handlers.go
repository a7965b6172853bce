package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/metrics"
	"github.com/JakeFAU/todo-progress/internal/todo"
)

const (
	maxJSONBodyBytes = 1 << 20
	notifyTimeout    = 5 * time.Second
	uploadFormMemory = 8 << 20
	uploadField      = "file"
)

// TodoHandler serves the todo CRUD and upload endpoints.
type TodoHandler struct {
	store     todo.Store
	blobs     todo.BlobStore
	publisher todo.Publisher
	validator *todo.Validator
	ids       todo.IDGenerator
	clock     todo.Clock
	maxUpload int64
	logger    *zap.Logger
}

// NewTodoHandler wires the handler to deps. deps.Validator must be set.
func NewTodoHandler(deps Deps, maxUploadBytes int64, logger *zap.Logger) *TodoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoHandler{
		store:     deps.Todos,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		validator: deps.Validator,
		ids:       deps.IDs,
		clock:     deps.Clock,
		maxUpload: maxUploadBytes,
		logger:    logger,
	}
}

// List handles GET /todos and returns every todo in creation order.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	todos, err := h.store.List(r.Context())
	metrics.ObserveTodoOperation("list", err)
	if err != nil {
		h.logger.Error("list todos failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list todos")
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// Create handles POST /todos. It answers 201 with the stored todo or 400 when
// the body fails the create schema.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := h.validator.DecodeCreate(body)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	id, err := h.ids.NewID()
	if err != nil {
		h.logger.Error("generate todo id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create todo")
		return
	}
	t := todo.New(id, req)
	err = h.store.Create(r.Context(), t)
	metrics.ObserveTodoOperation("create", err)
	if err != nil {
		h.logger.Error("create todo failed", zap.String("todo_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create todo")
		return
	}
	h.notify(r.Context(), todo.ChangeCreated, t)
	writeJSON(w, http.StatusCreated, t)
}

// Get handles GET /todos/{id}.
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update handles PUT /todos/{id}. Only the fields present in the body change.
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := h.validator.DecodeUpdate(body)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	current, ok := h.load(w, r)
	if !ok {
		return
	}
	updated := req.Apply(current)
	if !h.save(w, r, updated, "Failed to update todo") {
		return
	}
	h.notify(r.Context(), todo.ChangeUpdated, updated)
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /todos/{id} and answers 204 with an empty body.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, ok := h.load(w, r)
	if !ok {
		return
	}
	err := h.store.Delete(r.Context(), id)
	metrics.ObserveTodoOperation("delete", err)
	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Todo not found")
			return
		}
		h.logger.Error("delete todo failed", zap.String("todo_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete todo")
		return
	}
	h.notify(r.Context(), todo.ChangeDeleted, current)
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /todos/{id}/upload. The multipart field "file" is stored
// as <id>-<unixMillis>-<name> and its URI is recorded on the todo.
func (h *TodoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() {
		if rmErr := r.MultipartForm.RemoveAll(); rmErr != nil {
			h.logger.Debug("remove multipart temp files", zap.Error(rmErr))
		}
	}()
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Debug("close uploaded file", zap.Error(closeErr))
		}
	}()

	current, ok := h.load(w, r)
	if !ok {
		return
	}

	name := uploadName(current.ID, h.clock.Now(), header.Filename)
	uri, err := h.blobs.PutObject(r.Context(), name, uploadContentType(header), file)
	metrics.ObserveTodoOperation("upload", err)
	if err != nil {
		h.logger.Error("store upload failed",
			zap.String("todo_id", current.ID),
			zap.String("object", name),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "File upload failed")
		return
	}

	current.FileURL = uri
	if !h.save(w, r, current, "File upload failed") {
		return
	}
	h.notify(r.Context(), todo.ChangeUploaded, current)
	writeJSON(w, http.StatusOK, current)
}

func (h *TodoHandler) load(w http.ResponseWriter, r *http.Request) (todo.Todo, bool) {
	id := chi.URLParam(r, "id")
	t, err := h.store.Get(r.Context(), id)
	if err == nil {
		return t, true
	}
	if errors.Is(err, todo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Todo not found")
		return todo.Todo{}, false
	}
	metrics.ObserveTodoOperation("get", err)
	h.logger.Error("load todo failed", zap.String("todo_id", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to load todo")
	return todo.Todo{}, false
}

func (h *TodoHandler) save(w http.ResponseWriter, r *http.Request, t todo.Todo, failMsg string) bool {
	err := h.store.Update(r.Context(), t)
	metrics.ObserveTodoOperation("update", err)
	if err == nil {
		return true
	}
	if errors.Is(err, todo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Todo not found")
		return false
	}
	h.logger.Error("update todo failed", zap.String("todo_id", t.ID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, failMsg)
	return false
}

// notify publishes a change notification. Failures are logged and never
// affect the response.
func (h *TodoHandler) notify(ctx context.Context, kind todo.ChangeKind, t todo.Todo) {
	if h.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	change := todo.Change{Kind: kind, Todo: t, OccurredAt: h.clock.Now().UTC()}
	if _, err := h.publisher.Publish(ctx, string(kind), change); err != nil {
		h.logger.Warn("publish todo change failed",
			zap.String("kind", string(kind)),
			zap.String("todo_id", t.ID),
			zap.Error(err),
		)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return body, true
}

type validationResponse struct {
	Error   string                 `json:"error"`
	Details todo.ValidationErrors `json:"details,omitempty"`
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var invalid todo.ValidationErrors
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "Invalid request body",
			Details: invalid,
		})
		return
	}
	if errors.Is(err, todo.ErrInvalidJSON) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request body")
}

func uploadName(todoID string, now time.Time, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%s-%d-%s", todoID, now.UnixMilli(), base)
}

func uploadContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
