// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JakeFAU/todo-progress/internal/todo"
)

// TodoStore keeps todos in a map and remembers insertion order.
type TodoStore struct {
	mu    sync.RWMutex
	todos map[string]todo.Todo
	order []string
}

// NewTodoStore constructs an empty TodoStore.
func NewTodoStore() *TodoStore {
	return &TodoStore{todos: make(map[string]todo.Todo)}
}

// List returns every todo in creation order.
func (s *TodoStore) List(_ context.Context) ([]todo.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]todo.Todo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.todos[id])
	}
	return out, nil
}

// Get fetches a todo by id.
func (s *TodoStore) Get(_ context.Context, id string) (todo.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	if !ok {
		return todo.Todo{}, todo.ErrNotFound
	}
	return t, nil
}

// Create stores a new todo.
func (s *TodoStore) Create(_ context.Context, t todo.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.todos[t.ID]; exists {
		return fmt.Errorf("create %s: %w", t.ID, todo.ErrAlreadyExists)
	}
	s.todos[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

// Update replaces an existing todo.
func (s *TodoStore) Update(_ context.Context, t todo.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[t.ID]; !ok {
		return todo.ErrNotFound
	}
	s.todos[t.ID] = t
	return nil
}

// Delete removes a todo.
func (s *TodoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[id]; !ok {
		return todo.ErrNotFound
	}
	delete(s.todos, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}
