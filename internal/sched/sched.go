// Package sched provides a cancellable delay primitive for timer-driven
// state machines.
//
// Production code uses the wall-clock Scheduler returned by New. Tests use
// Fake, which only moves time forward when Advance is called, so timer-driven
// transitions (typing reveals, queue countdowns) run deterministically without
// sleeping.
package sched

import (
	"sort"
	"sync"
	"time"
)

// Timer is a handle to a pending callback. Stop cancels the callback and
// reports whether it was still pending.
type Timer interface {
	Stop() bool
}

// Scheduler schedules callbacks after a delay and reports the current time.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// AfterFunc runs f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// New returns a Scheduler backed by the wall clock.
func New() Scheduler {
	return wallClock{}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a Scheduler driven entirely by Advance. Callbacks run synchronously
// on the goroutine calling Advance, in scheduled order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake returns a Fake scheduler starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the fake clock's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers f to run once the clock has advanced by d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		fake: f,
		when: f.now.Add(d),
		seq:  f.seq,
		fn:   fn,
	}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every due timer in order.
// Callbacks may schedule further timers; those fire too if they fall within
// the advanced window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		t := f.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// Pending returns the number of timers waiting to fire.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// BlockUntil waits until at least n timers are pending. It is used to
// synchronize with code that schedules timers from another goroutine.
func (f *Fake) BlockUntil(n int) {
	for {
		if f.Pending() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// popDue removes and returns the earliest timer due at or before target,
// advancing the clock to its deadline. Returns nil when none are due.
func (f *Fake) popDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})

	for i, t := range f.timers {
		if t.when.After(target) {
			continue
		}
		f.timers = append(f.timers[:i], f.timers[i+1:]...)
		if t.when.After(f.now) {
			f.now = t.when
		}
		return t
	}
	return nil
}

type fakeTimer struct {
	fake *Fake
	when time.Time
	seq  int
	fn   func()
}

// Stop removes the timer from its scheduler's pending set.
func (t *fakeTimer) Stop() bool {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	for i, pending := range t.fake.timers {
		if pending == t {
			t.fake.timers = append(t.fake.timers[:i], t.fake.timers[i+1:]...)
			return true
		}
	}
	return false
}

var _ Scheduler = wallClock{}
var _ Scheduler = (*Fake)(nil)
