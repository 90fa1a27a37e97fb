package ratelimit

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestAdmit_FirstMessage(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	if !l.Admit("user-a", time.Now()) {
		t.Fatal("first message from a user should be admitted")
	}
}

func TestAdmit_ThrottledWithinWindow(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	now := time.Now()

	if !l.Admit("user-a", now) {
		t.Fatal("first message should be admitted")
	}
	if l.Admit("user-a", now.Add(2999*time.Millisecond)) {
		t.Error("second message 2999ms later should be throttled")
	}
}

func TestAdmit_SpacedMessages(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	now := time.Now()

	if !l.Admit("user-a", now) {
		t.Fatal("first message should be admitted")
	}
	if !l.Admit("user-a", now.Add(3*time.Second)) {
		t.Error("message exactly 3000ms later should be admitted")
	}
}

func TestAdmit_ThrottleDoesNotMutate(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	now := time.Now()

	l.Admit("user-a", now)
	// Two throttled attempts must not push the window forward.
	l.Admit("user-a", now.Add(time.Second))
	l.Admit("user-a", now.Add(2*time.Second))

	if !l.Admit("user-a", now.Add(3*time.Second)) {
		t.Error("window should be measured from the last admitted message")
	}
}

func TestAdmit_UsersIndependent(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	now := time.Now()

	if !l.Admit("user-a", now) {
		t.Fatal("user-a should be admitted")
	}
	if !l.Admit("user-b", now) {
		t.Error("user-b should not be affected by user-a's timestamp")
	}
}

func TestAdmit_ConcurrentSameUser(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	now := time.Now()

	const n = 32
	var wg sync.WaitGroup
	admitted := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("user-a", now) {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	if got := len(admitted); got != 1 {
		t.Errorf("exactly one of %d simultaneous events should be admitted, got %d", n, got)
	}
}

func TestPrune_RemovesIdleUsers(t *testing.T) {
	l := New(3*time.Second, time.Hour, testLogger())
	now := time.Now()

	l.Admit("stale", now.Add(-2*time.Hour))
	l.Admit("fresh", now)

	if removed := l.prune(now.Add(-time.Hour)); removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}

	// A pruned user starts over: immediately admitted again.
	if !l.Admit("stale", now) {
		t.Error("pruned user should be admitted as if new")
	}
	// The fresh user is still gated.
	if l.Admit("fresh", now.Add(time.Second)) {
		t.Error("fresh user should still be throttled")
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0, testLogger())
	if l.window != defaultWindow {
		t.Errorf("expected default window %v, got %v", defaultWindow, l.window)
	}
	if l.idleTTL != defaultIdleTTL {
		t.Errorf("expected default idle TTL %v, got %v", defaultIdleTTL, l.idleTTL)
	}
}
