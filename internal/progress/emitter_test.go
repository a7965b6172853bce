package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(e *Emitter) []Event {
	var out []Event
	for {
		evt, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, evt)
	}
}

func constantSteps(n int) StepSource {
	return StepFunc(func() int { return n })
}

func TestEmitterMaxStepProducesFiveProgressEvents(t *testing.T) {
	t.Parallel()

	events := drain(NewEmitter("abc-123", constantSteps(MaxStep)))

	require.Len(t, events, 6)
	for i, want := range []int{0, 20, 40, 60, 80, 100} {
		require.Equal(t, want, events[i].Progress)
		require.Equal(t, i, events[i].Sequence)
		require.Equal(t, "abc-123", events[i].SubjectID)
	}
	require.True(t, events[5].Terminal())
}

func TestEmitterMinStepProducesHundredProgressEvents(t *testing.T) {
	t.Parallel()

	events := drain(NewEmitter("slow", constantSteps(MinStep)))

	require.Len(t, events, 101)
	require.Equal(t, 99, events[99].Progress)
	require.Equal(t, MaxProgress, events[100].Progress)
}

func TestEmitterClampsOvershoot(t *testing.T) {
	t.Parallel()

	steps := []int{15, 20, 20, 20, 20, 20}
	idx := 0
	src := StepFunc(func() int {
		s := steps[idx]
		idx++
		return s
	})

	events := drain(NewEmitter("over", src))

	got := make([]int, 0, len(events))
	for _, evt := range events {
		got = append(got, evt.Progress)
	}
	// The counter reaches 115 after 95; the terminal event is pinned to 100.
	require.Equal(t, []int{0, 15, 35, 55, 75, 95, 100}, got)
}

func TestEmitterClampsOutOfRangeSteps(t *testing.T) {
	t.Parallel()

	zero := drain(NewEmitter("zero", constantSteps(0)))
	require.Len(t, zero, 101, "a zero step must be raised to MinStep")

	huge := drain(NewEmitter("huge", constantSteps(1000)))
	require.Len(t, huge, 6, "a huge step must be capped at MaxStep")
}

func TestEmitterIsNotRestartable(t *testing.T) {
	t.Parallel()

	e := NewEmitter("once", constantSteps(MaxStep))
	_ = drain(e)

	require.True(t, e.Done())
	evt, ok := e.Next()
	require.False(t, ok)
	require.Equal(t, Event{}, evt)
}

func TestEmitterRandomFeedInvariants(t *testing.T) {
	t.Parallel()

	for run := 0; run < 500; run++ {
		events := drain(NewEmitter("rand", nil))

		require.GreaterOrEqual(t, len(events), 6)
		require.LessOrEqual(t, len(events), 101)

		last := events[len(events)-1]
		require.True(t, last.Terminal())
		require.Equal(t, MaxProgress, last.Progress)

		prev := -1
		for i, evt := range events[:len(events)-1] {
			require.False(t, evt.Terminal())
			require.Less(t, evt.Progress, MaxProgress)
			require.Greater(t, evt.Progress, prev)
			require.Equal(t, i, evt.Sequence)
			require.NoError(t, evt.Validate())
			prev = evt.Progress
		}
	}
}

func TestRandomStepsRange(t *testing.T) {
	t.Parallel()

	seen := make(map[int]bool)
	for i := 0; i < 10000; i++ {
		s := RandomSteps{}.Step()
		require.GreaterOrEqual(t, s, MinStep)
		require.LessOrEqual(t, s, MaxStep)
		seen[s] = true
	}
	require.Len(t, seen, MaxStep-MinStep+1)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Event{SubjectID: "a", Progress: 100}.Validate())
	require.Error(t, Event{Progress: 1}.Validate())
	require.Error(t, Event{SubjectID: "a", Progress: 101}.Validate())
	require.Error(t, Event{SubjectID: "a", Progress: -1}.Validate())
	require.Error(t, Event{SubjectID: "a", Sequence: -1}.Validate())
}
