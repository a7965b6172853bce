package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameText(event string, id int, data string) string {
	return fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", event, id, data)
}

func TestCollectCompletedStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/todos/abc-123/progress", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, frameText("upload-progress", 0, `{"id":"abc-123","progress":0}`))
		fmt.Fprint(w, frameText("upload-progress", 1, `{"id":"abc-123","progress":42}`))
		fmt.Fprint(w, frameText("upload-complete", 2, `{"id":"abc-123","progress":100}`))
	}))
	defer srv.Close()

	frames, err := New(srv.URL+"/", srv.Client()).Collect(context.Background(), "abc-123")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Event: EventProgress, ID: 1, SubjectID: "abc-123", Progress: 42}, frames[1])
	assert.True(t, frames[2].Terminal())
	assert.Equal(t, 100, frames[2].Progress)
}

func TestStreamErrorFrameIsTerminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, frameText("upload-progress", 0, `{"id":"x","progress":0}`))
		fmt.Fprint(w, frameText("error", 2, `{"error":"Streaming error occurred"}`))
	}))
	defer srv.Close()

	frames, err := New(srv.URL, nil).Collect(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "Streaming error occurred", frames[1].Error)
	assert.Equal(t, 2, frames[1].ID)
}

func TestStreamIncomplete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, frameText("upload-progress", 0, `{"id":"x","progress":0}`))
	}))
	defer srv.Close()

	frames, err := New(srv.URL, nil).Collect(context.Background(), "x")
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Len(t, frames, 1)
}

func TestStreamNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"Todo not found"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Collect(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "Todo not found")
}

func TestStreamUnexpectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Collect(context.Background(), "x")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "boom", se.Message)
}

func TestStreamCallbackErrorStops(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, frameText("upload-progress", 0, `{"id":"x","progress":0}`))
		fmt.Fprint(w, frameText("upload-progress", 1, `{"id":"x","progress":5}`))
	}))
	defer srv.Close()

	stop := errors.New("stop")
	calls := 0
	err := New(srv.URL, nil).Stream(context.Background(), "x", func(Frame) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
