package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/metrics"
	"github.com/JakeFAU/todo-progress/internal/progress"
)

// DefaultDelay is the pause between two frames when Config.Delay is unset.
const DefaultDelay = 50 * time.Millisecond

// ErrSessionUsed is returned when Run is called on a session that already ran.
var ErrSessionUsed = errors.New("stream session already used")

// State is a session lifecycle state.
type State string

// Session states.
const (
	StateOpen       State = "open"
	StateEmitting   State = "emitting"
	StateCompleting State = "completing"
	StateAborted    State = "aborted"
	StateFaulted    State = "faulted"
	StateClosed     State = "closed"
)

var transitions = map[State][]State{
	StateOpen:       {StateEmitting, StateAborted, StateFaulted},
	StateEmitting:   {StateEmitting, StateCompleting, StateAborted, StateFaulted},
	StateCompleting: {StateClosed},
	StateAborted:    {StateClosed},
	StateFaulted:    {StateClosed},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome summarizes how a session ended.
type Outcome string

// Session outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFaulted   Outcome = "faulted"
	OutcomeAbandoned Outcome = "abandoned"
)

// Result is returned by Session.Run.
type Result struct {
	Outcome  Outcome
	Frames   int
	Duration time.Duration
	// Err holds the write or encode failure for faulted and abandoned sessions.
	Err error
}

// Config tunes a session. The zero value is usable.
type Config struct {
	// Delay is the pause between frames; zero means DefaultDelay.
	Delay time.Duration
	// Steps drives the emitter; nil means uniformly random steps.
	Steps progress.StepSource
	// Encode renders progress frames. Error frames always use Frame.Encode.
	Encode func(Frame) ([]byte, error)
	// Transport labels metrics ("sse", "ws").
	Transport string
	Logger    *zap.Logger
}

// Session streams the progress feed of one subject to one connection.
type Session struct {
	subjectID string
	conn      Conn
	emitter   *progress.Emitter
	delay     time.Duration
	encode    func(Frame) ([]byte, error)
	transport string
	logger    *zap.Logger

	state   State
	nextID  int
	frames  int
	aborted atomic.Bool
}

// NewSession prepares a session. Nothing is written until Run.
func NewSession(subjectID string, conn Conn, cfg Config) (*Session, error) {
	if subjectID == "" {
		return nil, errors.New("subject id is required")
	}
	if conn == nil {
		return nil, errors.New("connection is required")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Encode == nil {
		cfg.Encode = Frame.Encode
	}
	if cfg.Transport == "" {
		cfg.Transport = "unknown"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Session{
		subjectID: subjectID,
		conn:      conn,
		emitter:   progress.NewEmitter(subjectID, cfg.Steps),
		delay:     cfg.Delay,
		encode:    cfg.Encode,
		transport: cfg.Transport,
		logger:    cfg.Logger.With(zap.String("subject_id", subjectID), zap.String("transport", cfg.Transport)),
		state:     StateOpen,
	}, nil
}

// State returns the current lifecycle state. It is only meaningful from the
// goroutine that calls Run or after Run returns.
func (s *Session) State() State {
	return s.state
}

// Run streams frames until the feed completes, ctx is canceled or a write
// fails, then closes the connection. Run blocks for the life of the session.
func (s *Session) Run(ctx context.Context) Result {
	if s.state != StateOpen {
		return Result{Outcome: OutcomeAbandoned, Err: ErrSessionUsed}
	}
	start := time.Now()

	stop := context.AfterFunc(ctx, func() { s.aborted.Store(true) })
	defer stop()

	metrics.IncActiveStreams(s.transport)
	defer metrics.DecActiveStreams(s.transport)

	res := s.stream(ctx)

	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close stream connection", zap.Error(err))
	}
	s.transition(StateClosed)

	res.Frames = s.frames
	res.Duration = time.Since(start)
	metrics.ObserveStreamSession(s.transport, string(res.Outcome), res.Duration)
	return res
}

func (s *Session) stream(ctx context.Context) Result {
	timer := time.NewTimer(s.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		if s.isAborted(ctx) {
			s.transition(StateAborted)
			return Result{Outcome: OutcomeAborted}
		}
		evt, ok := s.emitter.Next()
		if !ok {
			// The emitter always ends with a terminal event, which returns below.
			s.transition(StateCompleting)
			return Result{Outcome: OutcomeCompleted}
		}

		s.transition(StateEmitting)
		frame := ProgressFrame(evt, s.nextID)
		if err := s.write(frame, s.encode); err != nil {
			if s.isAborted(ctx) || isDisconnect(err) {
				s.transition(StateAborted)
				return Result{Outcome: OutcomeAborted}
			}
			return s.fault(err)
		}

		if evt.Terminal() {
			s.transition(StateCompleting)
			return Result{Outcome: OutcomeCompleted}
		}
		if !s.wait(ctx, timer) {
			s.transition(StateAborted)
			return Result{Outcome: OutcomeAborted}
		}
	}
}

func (s *Session) fault(cause error) Result {
	s.transition(StateFaulted)
	s.logger.Warn("progress stream fault", zap.Int("frames", s.frames), zap.Error(cause))

	if err := s.write(ErrorFrame(s.nextID, faultMessage), Frame.Encode); err != nil {
		s.logger.Debug("error frame not delivered", zap.Error(err))
		return Result{Outcome: OutcomeAbandoned, Err: cause}
	}
	return Result{Outcome: OutcomeFaulted, Err: cause}
}

func (s *Session) write(frame Frame, encode func(Frame) ([]byte, error)) error {
	data, err := encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.ID, err)
	}
	if err := s.conn.WriteFrame(data); err != nil {
		return fmt.Errorf("write frame %d: %w", frame.ID, err)
	}
	// Ids advance only for delivered frames so the client never sees a gap.
	s.nextID++
	s.frames++
	metrics.ObserveFrame(frame.Event)
	return nil
}

// wait sleeps for the inter-frame delay. It returns false if the session was
// aborted in the meantime.
func (s *Session) wait(ctx context.Context, timer *time.Timer) bool {
	timer.Reset(s.delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return !s.aborted.Load()
	}
}

func (s *Session) isAborted(ctx context.Context) bool {
	return s.aborted.Load() || ctx.Err() != nil
}

func (s *Session) transition(to State) {
	if s.state == to && to == StateEmitting {
		return
	}
	if !CanTransition(s.state, to) {
		s.logger.Error("invalid stream state transition",
			zap.String("from", string(s.state)), zap.String("to", string(to)))
		return
	}
	s.state = to
}
