package progress

import (
	"errors"
	"fmt"
)

const (
	// MaxProgress is the ceiling reported by the terminal event.
	MaxProgress = 100
	// MinStep and MaxStep bound a single advance of the counter.
	MinStep = 1
	MaxStep = 20
)

// Event is one point of a subject's progress feed. Events are values and are
// never mutated after the Emitter hands them out.
type Event struct {
	// SubjectID identifies the todo whose progress is reported.
	SubjectID string
	// Progress is the completion percentage in [0, MaxProgress].
	Progress int
	// Sequence numbers events within one feed, starting at 0.
	Sequence int
}

// Terminal reports whether the event is the final, 100% event of its feed.
func (e Event) Terminal() bool {
	return e.Progress >= MaxProgress
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SubjectID == "" {
		return errors.New("subject id is required")
	}
	if e.Progress < 0 || e.Progress > MaxProgress {
		return fmt.Errorf("progress %d out of range [0,%d]", e.Progress, MaxProgress)
	}
	if e.Sequence < 0 {
		return errors.New("sequence must be >= 0")
	}
	return nil
}
