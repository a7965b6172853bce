// Package memory records published notifications in memory.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultRetain is the number of messages New keeps.
const DefaultRetain = 1000

// Publisher stores the most recent published payloads for inspection. It is
// the default notification sink when Pub/Sub is not configured.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	retain   int
	total    int
	err      error
}

// Message captures one publish call.
type Message struct {
	Kind    string
	Payload any
}

// New returns a memory Publisher that keeps the last DefaultRetain messages.
func New() *Publisher {
	return NewWithRetain(DefaultRetain)
}

// NewWithRetain returns a Publisher keeping at most retain messages; older
// ones are discarded first. A non-positive retain keeps everything.
func NewWithRetain(retain int) *Publisher {
	return &Publisher{retain: retain}
}

// FailWith makes every later Publish call return err. A nil err restores
// normal behaviour.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, kind string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, Message{Kind: kind, Payload: payload})
	if p.retain > 0 && len(p.messages) > p.retain {
		p.messages = append(p.messages[:0], p.messages[len(p.messages)-p.retain:]...)
	}
	p.total++
	return fmt.Sprintf("memory-%d", p.total), nil
}

// Messages returns a copy of the recorded publishes.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Kinds returns the kind of every recorded publish in order.
func (p *Publisher) Kinds() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.messages))
	for i, m := range p.messages {
		out[i] = m.Kind
	}
	return out
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
