package todo

import (
	"errors"
	"time"
)

// Store errors.
var (
	ErrNotFound      = errors.New("todo not found")
	ErrAlreadyExists = errors.New("todo already exists")
)

// Todo is a single todo record.
type Todo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	FileURL     string `json:"fileUrl,omitempty"`
}

// CreateRequest is the body of POST /todos.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
}

// UpdateRequest is the body of PUT /todos/{id}. Nil fields keep their value.
type UpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// New builds a todo from a create request.
func New(id string, req CreateRequest) Todo {
	return Todo{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
}

// Apply merges the set fields of req into t.
func (req UpdateRequest) Apply(t Todo) Todo {
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	return t
}

// ChangeKind names a todo mutation for change notifications.
type ChangeKind string

// Change kinds, used as notification topics.
const (
	ChangeCreated  ChangeKind = "todo.created"
	ChangeUpdated  ChangeKind = "todo.updated"
	ChangeDeleted  ChangeKind = "todo.deleted"
	ChangeUploaded ChangeKind = "todo.uploaded"
)

// Change is the payload published after a successful mutation.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	Todo       Todo       `json:"todo"`
	OccurredAt time.Time  `json:"occurred_at"`
}
