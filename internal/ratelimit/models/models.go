package models

import (
	"time"
)

// OperationClass names a throttled operation with its own budget.
type OperationClass string

const (
	// ClassVerify: first verification of a class log (30 per hour).
	ClassVerify OperationClass = "verify"
	// ClassReverify: re-running verification on an already verified log (10 per hour).
	ClassReverify OperationClass = "reverify"
)

func (c OperationClass) String() string { return string(c) }

// Limit is the admission budget of one operation class.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Classes maps operation classes to their budgets.
type Classes map[OperationClass]Limit

// DefaultClasses returns the built-in budgets.
func DefaultClasses() Classes {
	return Classes{
		ClassVerify:   {MaxRequests: 30, Window: time.Hour},
		ClassReverify: {MaxRequests: 10, Window: time.Hour},
	}
}

// Lookup returns the budget for class. Unknown classes and non-positive
// budgets report false.
func (c Classes) Lookup(class OperationClass) (Limit, bool) {
	l, ok := c[class]
	if !ok || l.MaxRequests <= 0 || l.Window <= 0 {
		return Limit{}, false
	}
	return l, true
}

// RateLimitResult represents the outcome of one admission.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Window is a fixed-window counter for one key.
type Window struct {
	Key     string
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window has ended at now.
func (w *Window) Expired(now time.Time) bool {
	return !now.Before(w.ResetAt)
}

// RetryAfterSeconds is the whole seconds from now until resetAt, rounded up.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
