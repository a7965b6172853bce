package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/todo-progress/internal/audit"
	"github.com/JakeFAU/todo-progress/internal/todo"
)

// PublisherSink publishes every record as an audit.Kind notification.
type PublisherSink struct {
	pub todo.Publisher
}

// NewPublisherSink returns a sink that forwards records to pub.
func NewPublisherSink(pub todo.Publisher) *PublisherSink {
	return &PublisherSink{pub: pub}
}

// Consume publishes each record and returns the joined publish errors.
func (s *PublisherSink) Consume(ctx context.Context, batch []audit.Record) error {
	if s == nil || s.pub == nil {
		return nil
	}
	var errs []error
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.pub.Publish(ctx, audit.Kind, rec); err != nil {
			errs = append(errs, fmt.Errorf("publish session %s: %w", rec.SessionID, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements audit.Sink. The publisher is owned by the caller.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
