package traffic

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker()
	tr.now = clock.Now
	return tr, clock
}

func TestTracker_CountsByOutcome(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Record(OutcomeSuccess)
	tr.Record(OutcomeSuccess)
	tr.Record(OutcomeError)
	tr.Record(OutcomeDenied)

	c := tr.CountsIn(time.Minute)
	if c.Success != 2 || c.Error != 1 || c.Denied != 1 {
		t.Errorf("CountsIn() = %+v, want 2/1/1", c)
	}
	if c.Requests() != 4 {
		t.Errorf("Requests() = %d, want 4", c.Requests())
	}
}

func TestTracker_WindowExcludesOldEvents(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Record(OutcomeError)
	clock.Advance(2 * time.Minute)
	tr.Record(OutcomeSuccess)

	if c := tr.CountsIn(time.Minute); c.Error != 0 || c.Success != 1 {
		t.Errorf("CountsIn(1m) = %+v, want only the recent success", c)
	}
	if c := tr.CountsIn(3 * time.Minute); c.Error != 1 || c.Success != 1 {
		t.Errorf("CountsIn(3m) = %+v, want both events", c)
	}
}

func TestTracker_PrunesPastRetention(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Record(OutcomeSuccess)
	clock.Advance(retention + time.Second)
	tr.Record(OutcomeSuccess)

	tr.mu.Lock()
	n := len(tr.events)
	tr.mu.Unlock()
	if n != 1 {
		t.Errorf("events retained = %d, want 1", n)
	}
}

func TestCounts_ErrorPct(t *testing.T) {
	tests := []struct {
		c    Counts
		want float64
	}{
		{Counts{}, 0},
		{Counts{Success: 3, Error: 1}, 25},
		{Counts{Error: 2, Denied: 10}, 100},
	}
	for _, tt := range tests {
		if got := tt.c.ErrorPct(); got != tt.want {
			t.Errorf("%+v.ErrorPct() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestTracker_Reset(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Record(OutcomeError)
	tr.Reset()
	if c := tr.CountsIn(time.Hour); c.Requests() != 0 {
		t.Errorf("CountsIn() after Reset = %+v, want zero", c)
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(OutcomeSuccess)
		}()
	}
	wg.Wait()
	if c := tr.CountsIn(time.Minute); c.Success != 50 {
		t.Errorf("Success = %d, want 50", c.Success)
	}
}

func TestPackageLevel_RecordAndReset(t *testing.T) {
	Reset()
	defer Reset()
	Record(OutcomeDenied)
	if c := CountsIn(time.Minute); c.Denied != 1 {
		t.Errorf("Denied = %d, want 1", c.Denied)
	}
}
