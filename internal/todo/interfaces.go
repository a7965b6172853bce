package todo

import (
	"context"
	"io"
	"time"
)

// Store persists todos. List returns todos in creation order.
type Store interface {
	List(ctx context.Context) ([]Todo, error)
	Get(ctx context.Context, id string) (Todo, error)
	Create(ctx context.Context, t Todo) error
	// Update replaces an existing todo and returns ErrNotFound if it is missing.
	Update(ctx context.Context, t Todo) error
	Delete(ctx context.Context, id string) error
}

// BlobStore persists uploaded files and returns the stored object's URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error)
}

// Publisher sends change notifications. kind is one of the ChangeKind values
// or an audit record kind; payload is marshaled to JSON by the publisher.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
}

// IDGenerator produces todo ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
