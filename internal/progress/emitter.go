package progress

import "math/rand/v2"

// StepSource supplies the increment applied to the counter on each tick.
// Implementations should return values in [MinStep, MaxStep]; anything outside
// that range is clamped by the Emitter.
type StepSource interface {
	Step() int
}

// RandomSteps draws steps uniformly from [MinStep, MaxStep] using the
// process-wide math/rand/v2 source, which is safe for concurrent use.
type RandomSteps struct{}

// Step returns a uniformly distributed step.
func (RandomSteps) Step() int {
	return rand.IntN(MaxStep-MinStep+1) + MinStep
}

// StepFunc adapts a plain function to StepSource.
type StepFunc func() int

// Step calls f.
func (f StepFunc) Step() int {
	return f()
}

// Emitter yields the progress feed for one subject. It is lazy, finite and
// not restartable; it is not safe for concurrent use and is meant to be owned
// by a single stream session.
type Emitter struct {
	subjectID string
	steps     StepSource
	progress  int
	sequence  int
	done      bool
}

// NewEmitter creates an Emitter for subjectID. A nil steps falls back to
// RandomSteps.
func NewEmitter(subjectID string, steps StepSource) *Emitter {
	if steps == nil {
		steps = RandomSteps{}
	}
	return &Emitter{subjectID: subjectID, steps: steps}
}

// Next returns the next event and true, or a zero Event and false once the
// terminal event has been handed out.
func (e *Emitter) Next() (Event, bool) {
	if e.done {
		return Event{}, false
	}
	evt := Event{SubjectID: e.subjectID, Sequence: e.sequence}
	e.sequence++
	if e.progress >= MaxProgress {
		// The walk may overshoot; the terminal event is always exactly 100.
		evt.Progress = MaxProgress
		e.done = true
		return evt, true
	}
	evt.Progress = e.progress
	e.progress += e.step()
	return evt, true
}

// Done reports whether the terminal event has already been returned.
func (e *Emitter) Done() bool {
	return e.done
}

func (e *Emitter) step() int {
	s := e.steps.Step()
	if s < MinStep {
		return MinStep
	}
	if s > MaxStep {
		return MaxStep
	}
	return s
}
