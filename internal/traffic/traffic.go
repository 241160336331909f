package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished request for health accounting.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeDenied
)

// retention bounds how long events are kept; windows longer than this see truncated counts.
const retention = 5 * time.Minute

var defaultTracker = NewTracker()

// Record records an outcome on the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// CountsIn returns process-wide outcome counts within the window ending now.
func CountsIn(window time.Duration) Counts {
	return defaultTracker.CountsIn(window)
}

// Reset clears the process-wide tracker. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Counts holds outcome totals for a window.
type Counts struct {
	Success int
	Error   int
	Denied  int
}

// Requests is every outcome including rate-limit denials.
func (c Counts) Requests() int {
	return c.Success + c.Error + c.Denied
}

// ErrorPct is the share of served requests (denials excluded) that failed, 0-100.
func (c Counts) ErrorPct() float64 {
	served := c.Success + c.Error
	if served == 0 {
		return 0
	}
	return float64(c.Error) * 100 / float64(served)
}

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker keeps a time-ordered log of outcomes. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// NewTracker returns an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends an outcome stamped with the current time.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, outcome: o})
	t.pruneLocked(now)
}

// CountsIn returns outcome counts within the window ending now.
func (t *Tracker) CountsIn(window time.Duration) Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	cutoff := now.Add(-window)
	var c Counts
	for i := len(t.events) - 1; i >= 0 && !t.events[i].at.Before(cutoff); i-- {
		switch t.events[i].outcome {
		case OutcomeSuccess:
			c.Success++
		case OutcomeError:
			c.Error++
		case OutcomeDenied:
			c.Denied++
		}
	}
	return c
}

// Reset drops all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
