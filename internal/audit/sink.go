package audit

import "context"

// Sink consumes batches of session records. Implementations must honor ctx
// deadlines and tolerate repeated calls.
type Sink interface {
	Consume(ctx context.Context, batch []Record) error
	Close(ctx context.Context) error
}

// Recorder accepts individual records; Hub satisfies it so stream handlers
// do not care how records are buffered or delivered.
type Recorder interface {
	Submit(rec Record)
}
