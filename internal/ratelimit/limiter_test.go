package ratelimit

import (
	"testing"
	"time"
)

var testRule = Rule{Limit: 3, Window: 300 * time.Second}

func TestAllow_UnderLimit(t *testing.T) {
	l := NewLimiter(testRule)
	now := time.Now()

	for i := 0; i < testRule.Limit; i++ {
		ok, wait := l.Allow("user1", now)
		if !ok {
			t.Fatalf("submission %d should be allowed", i+1)
		}
		if wait != 0 {
			t.Errorf("expected wait=0 for allowed submission, got %v", wait)
		}
		l.Record("user1", now)
	}
}

func TestAllow_DeniedAtLimit(t *testing.T) {
	l := NewLimiter(testRule)
	now := time.Now()

	for i := 0; i < testRule.Limit; i++ {
		l.Record("user1", now)
	}

	ok, wait := l.Allow("user1", now)
	if ok {
		t.Fatal("fourth submission inside the window should be denied")
	}
	if wait <= 0 || wait > testRule.Window {
		t.Errorf("expected wait in (0, %v], got %v", testRule.Window, wait)
	}
}

func TestAllow_WaitTracksOldestEntry(t *testing.T) {
	l := NewLimiter(testRule)
	base := time.Now()

	// Oldest entry at base, two more a minute later.
	l.Record("user1", base)
	l.Record("user1", base.Add(time.Minute))
	l.Record("user1", base.Add(time.Minute))

	// 100s in: the oldest entry exits the window at base+300s, so the
	// denial should quote 200s.
	ok, wait := l.Allow("user1", base.Add(100*time.Second))
	if ok {
		t.Fatal("expected denial")
	}
	if wait != 200*time.Second {
		t.Errorf("expected wait=200s, got %v", wait)
	}
}

func TestAllow_WindowExpiry(t *testing.T) {
	l := NewLimiter(testRule)
	base := time.Now()

	for i := 0; i < testRule.Limit; i++ {
		l.Record("user1", base)
	}

	if ok, _ := l.Allow("user1", base.Add(time.Second)); ok {
		t.Fatal("expected denial inside the window")
	}

	// After the denied wait has elapsed, a retry succeeds.
	ok, wait := l.Allow("user1", base.Add(testRule.Window).Add(time.Second))
	if !ok {
		t.Fatalf("expected allowance after window expiry, got wait=%v", wait)
	}
}

func TestAllow_DeniedAttemptDoesNotCount(t *testing.T) {
	l := NewLimiter(testRule)
	now := time.Now()

	for i := 0; i < testRule.Limit; i++ {
		l.Record("user1", now)
	}

	// Repeated denied checks must not extend the window.
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("user1", now); ok {
			t.Fatal("expected denial")
		}
	}

	if ok, _ := l.Allow("user1", now.Add(testRule.Window).Add(time.Second)); !ok {
		t.Fatal("denied attempts counted against the window")
	}
}

func TestAllow_SubmittersIndependent(t *testing.T) {
	l := NewLimiter(testRule)
	now := time.Now()

	for i := 0; i < testRule.Limit; i++ {
		l.Record("user1", now)
	}

	if ok, _ := l.Allow("user1", now); ok {
		t.Fatal("user1 should be limited")
	}
	if ok, _ := l.Allow("user2", now); !ok {
		t.Fatal("user2 should be unaffected by user1's window")
	}
}

func TestRemaining(t *testing.T) {
	l := NewLimiter(testRule)
	now := time.Now()

	if got := l.Remaining("user1", now); got != testRule.Limit {
		t.Errorf("expected %d remaining for fresh submitter, got %d", testRule.Limit, got)
	}

	l.Record("user1", now)
	if got := l.Remaining("user1", now); got != testRule.Limit-1 {
		t.Errorf("expected %d remaining, got %d", testRule.Limit-1, got)
	}

	l.Record("user1", now)
	l.Record("user1", now)
	if got := l.Remaining("user1", now); got != 0 {
		t.Errorf("expected 0 remaining at the limit, got %d", got)
	}
}
