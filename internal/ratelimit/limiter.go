// Package ratelimit provides in-memory per-submitter rate limiting using a
// sliding window of submission timestamps. It is a best-effort throttle for
// the submission gateway, not a security boundary: state is process-local
// and does not survive restarts.
package ratelimit

import (
	"sync"
	"time"
)

// Rule defines a rate limiting policy: the maximum number of submissions
// allowed inside the trailing window.
type Rule struct {
	Limit  int           // max submissions in the window
	Window time.Duration // trailing window duration
}

// RuleSubmit is the default policy: 3 submissions per 5 minutes per submitter.
var RuleSubmit = Rule{Limit: 3, Window: 5 * time.Minute}

// Limiter tracks recent submission timestamps per submitter and answers
// admission checks against a Rule. All methods are safe for concurrent use;
// a single mutex guards the whole table.
type Limiter struct {
	mu      sync.Mutex
	rule    Rule
	windows map[string][]time.Time // submitterID -> timestamps, oldest first
}

// NewLimiter creates a Limiter enforcing the given rule.
func NewLimiter(rule Rule) *Limiter {
	return &Limiter{
		rule:    rule,
		windows: make(map[string][]time.Time),
	}
}

// Allow checks whether the submitter is within the rate limit at time now.
// Timestamps older than the window are pruned before counting, so expiry is
// evaluated lazily per check rather than via a timer.
//
// Returns (true, 0) when the submission may proceed. Returns (false, wait)
// when the limit is reached; wait is the time until the oldest retained
// timestamp exits the window, floored to whole seconds and never negative.
//
// Allow does not record anything: callers must invoke Record after the
// submission is actually admitted, so that a denied or otherwise failed
// attempt never counts against the window.
func (l *Limiter) Allow(submitterID string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.prune(submitterID, now)
	if len(window) < l.rule.Limit {
		return true, 0
	}

	oldest := window[0]
	wait := oldest.Add(l.rule.Window).Sub(now)
	wait = wait.Truncate(time.Second)
	if wait < 0 {
		wait = 0
	}
	return false, wait
}

// Record adds a submission timestamp for the submitter. Call it exactly once
// per admitted submission, after the enqueue has succeeded.
func (l *Limiter) Record(submitterID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.prune(submitterID, now)
	l.windows[submitterID] = append(window, now)
}

// Remaining returns how many submissions the submitter has left in the
// current window. Exposed for metrics and the queue-status view.
func (l *Limiter) Remaining(submitterID string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.rule.Limit - len(l.prune(submitterID, now))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// prune drops timestamps older than the window and stores the result back.
// An emptied entry is deleted so the table does not grow with one-off
// submitters. Callers must hold l.mu.
func (l *Limiter) prune(submitterID string, now time.Time) []time.Time {
	window := l.windows[submitterID]
	cutoff := now.Add(-l.rule.Window)

	// Timestamps arrive in order, so find the first one still inside the
	// window and keep the tail.
	keep := 0
	for keep < len(window) && !window[keep].After(cutoff) {
		keep++
	}
	window = window[keep:]

	if len(window) == 0 {
		delete(l.windows, submitterID)
		return nil
	}
	l.windows[submitterID] = window
	return window
}
