package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	f := NewFake()

	var fired []string
	f.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	f.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	f.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })

	f.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)

	f.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Zero(t, f.Pending())
}

func TestFake_StopCancelsPendingTimer(t *testing.T) {
	f := NewFake()

	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	f.Advance(5 * time.Second)
	assert.False(t, fired)

	// Stopping again reports the timer as already gone.
	assert.False(t, timer.Stop())
}

func TestFake_CallbackMaySchedule(t *testing.T) {
	f := NewFake()

	var fired []string
	f.AfterFunc(time.Second, func() {
		fired = append(fired, "first")
		f.AfterFunc(time.Second, func() { fired = append(fired, "second") })
	})

	// A single advance covers the chained timer's window too.
	f.Advance(2 * time.Second)
	assert.Equal(t, []string{"first", "second"}, fired)
}

func TestFake_NowAdvances(t *testing.T) {
	f := NewFake()
	start := f.Now()

	f.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), f.Now())
}

func TestFake_TieBreakBySchedulingOrder(t *testing.T) {
	f := NewFake()

	var fired []int
	for i := 0; i < 5; i++ {
		i := i
		f.AfterFunc(time.Second, func() { fired = append(fired, i) })
	}

	f.Advance(time.Second)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, fired)
}

func TestWallClock_AfterFunc(t *testing.T) {
	s := New()

	done := make(chan struct{})
	s.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "timer did not fire")
	}
}
