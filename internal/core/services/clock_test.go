package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock runs AfterFunc callbacks synchronously from Advance
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, firing due timers in order
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func TestDebouncer_RunsOnceAfterQuietPeriod(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	d := NewDebouncer(clock, 10*time.Second, func() { calls++ })

	d.Schedule()
	clock.Advance(5 * time.Second)
	d.Schedule()
	clock.Advance(9 * time.Second)
	assert.Equal(t, 0, calls)
	assert.True(t, d.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)
	assert.False(t, d.Pending())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, calls)
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	d := NewDebouncer(clock, time.Second, func() { calls++ })

	assert.False(t, d.Cancel())
	d.Schedule()
	assert.True(t, d.Cancel())
	clock.Advance(time.Minute)
	assert.Equal(t, 0, calls)
}

func TestDebouncer_Flush(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	d := NewDebouncer(clock, time.Second, func() { calls++ })

	assert.False(t, d.Flush())
	d.Schedule()
	assert.True(t, d.Flush())
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, calls)
}

func TestDebouncer_SystemClock(t *testing.T) {
	done := make(chan struct{})
	d := NewDebouncer(nil, time.Millisecond, func() { close(done) })
	d.Schedule()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call did not run")
	}
}
