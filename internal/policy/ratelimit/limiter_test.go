package ratelimit

import (
	"testing"
	"time"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func newTestLimiter(cfg Config) (*Limiter, *fakeNow) {
	clock := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	l := New(cfg)
	l.now = clock.now
	return l, clock
}

func TestLimiterBurstThenRefuse(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(Config{RPS: 10, Burst: 2})

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d within burst was refused", i)
		}
	}
	ok, retry := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("expected third request to be refused")
	}
	if retry <= 0 || retry > 100*time.Millisecond {
		t.Fatalf("expected retry within one token interval, got %v", retry)
	}

	// A refused request does not consume the next token.
	clock.t = clock.t.Add(100 * time.Millisecond)
	if ok, _ := l.Allow("10.0.0.1"); !ok {
		t.Fatal("expected token after refill")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(Config{RPS: 1, Burst: 1})

	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("first request for a refused")
	}
	if ok, _ := l.Allow("a"); ok {
		t.Fatal("second request for a allowed")
	}
	if ok, _ := l.Allow("b"); !ok {
		t.Fatal("first request for b refused")
	}
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(Config{})
	if l.Enabled() {
		t.Fatal("zero rate should disable limiting")
	}
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("request %d refused by disabled limiter", i)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("disabled limiter should not track keys, got %d", l.Len())
	}

	var nilLimiter *Limiter
	if ok, _ := nilLimiter.Allow("a"); !ok {
		t.Fatal("nil limiter should allow")
	}
}

func TestLimiterEvictsIdleKeys(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(Config{RPS: 5, Burst: 1, IdleTTL: time.Minute})

	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", l.Len())
	}

	clock.t = clock.t.Add(2 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("expected idle keys to be evicted, got %d", l.Len())
	}
}
