package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/progress"
	storemem "github.com/JakeFAU/todo-progress/internal/storage/memory"
	"github.com/JakeFAU/todo-progress/internal/todo"
)

type exampleIDs struct{}

func (exampleIDs) NewID() (string, error) { return "session-1", nil }

type exampleClock struct{}

func (exampleClock) Now() time.Time { return time.Unix(0, 0) }

// ExampleProgressHandler_ServeSSE shows the frames written for one todo.
func ExampleProgressHandler_ServeSSE() {
	store := storemem.NewTodoStore()
	if err := store.Create(context.Background(), todo.Todo{ID: "abc-123", Title: "report.pdf"}); err != nil {
		panic(err)
	}
	handler := NewProgressHandler(
		Deps{Todos: store, IDs: exampleIDs{}, Clock: exampleClock{}},
		Options{
			StreamDelay: time.Millisecond,
			Steps:       progress.StepFunc(func() int { return progress.MaxStep }),
		},
		zap.NewNop(),
	)

	req := withTodoIDParam(httptest.NewRequest(http.MethodGet, "/todos/abc-123/progress", nil), "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeSSE(rec, req)

	fmt.Print(strings.ReplaceAll(rec.Body.String(), "\n\n", "\n---\n"))
	// Output:
	// event: upload-progress
	// id: 0
	// data: {"id":"abc-123","progress":0}
	// ---
	// event: upload-progress
	// id: 1
	// data: {"id":"abc-123","progress":20}
	// ---
	// event: upload-progress
	// id: 2
	// data: {"id":"abc-123","progress":40}
	// ---
	// event: upload-progress
	// id: 3
	// data: {"id":"abc-123","progress":60}
	// ---
	// event: upload-progress
	// id: 4
	// data: {"id":"abc-123","progress":80}
	// ---
	// event: upload-complete
	// id: 5
	// data: {"id":"abc-123","progress":100}
	// ---
}
