package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestStore points a storage client at a fake JSON API server.
func newTestStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body string
		path string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		body, path = string(data), r.URL.Path
		mu.Unlock()
		fmt.Fprintln(w, `{"bucket":"todo-uploads","name":"uploads/todo-1-1-notes.txt"}`)
	})
	store := newTestStore(t, handler, Config{Bucket: "todo-uploads", Prefix: "/uploads/"})

	uri, err := store.PutObject(context.Background(), "todo-1-1-notes.txt", "text/plain", strings.NewReader("file-body"))
	require.NoError(t, err)
	assert.Equal(t, "gs://todo-uploads/uploads/todo-1-1-notes.txt", uri)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, path, "/b/todo-uploads/o")
	assert.Contains(t, body, "file-body")
	assert.Contains(t, body, "uploads/todo-1-1-notes.txt")
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, handler, Config{Bucket: "todo-uploads"})

	_, err := store.PutObject(context.Background(), "x.txt", "", strings.NewReader("data"))
	require.Error(t, err)
}

func TestPutObjectEmptyPath(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.NotFoundHandler(), Config{Bucket: "todo-uploads"})
	_, err := store.PutObject(context.Background(), "", "", strings.NewReader("data"))
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store := &BlobStore{bucket: "b"}
	assert.Equal(t, "a.txt", store.ObjectName("a.txt"))
	store.prefix = "uploads"
	assert.Equal(t, "uploads/a.txt", store.ObjectName("a.txt"))
}
