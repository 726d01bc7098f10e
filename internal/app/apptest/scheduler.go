// Package apptest holds deterministic fakes for exercising the quiz engine.
package apptest

import (
	"sync"
	"time"

	"trivia-service/internal/app"
)

// FakeScheduler is a virtual clock. Timers only fire from Advance, in
// deadline order, on the caller's goroutine.
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*FakeTimer
}

func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{now: start}
}

func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) app.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &FakeTimer{sched: s, at: s.now.Add(d), fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward, firing every timer that comes due.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *FakeTimer
		for _, t := range s.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.at
		next.fired = true
		s.mu.Unlock()
		next.fn()
	}
}

// Pending counts timers that are neither stopped nor fired.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// Last returns the most recently armed timer.
func (s *FakeScheduler) Last() *FakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// FakeTimer is a timer handed out by FakeScheduler.
type FakeTimer struct {
	sched   *FakeScheduler
	at      time.Time
	fn      func()
	fired   bool
	stopped bool
}

func (t *FakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs the callback even if the timer was stopped, simulating a
// callback that was already in flight when Stop was called.
func (t *FakeTimer) Fire() {
	t.sched.mu.Lock()
	t.fired = true
	t.sched.mu.Unlock()
	t.fn()
}
