// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package scheduler provides the single logical thread every matchmaking state machine runs on.
//
// Work reaches the loop in two ways: Post queues a task that runs after the current
// callback stack has unwound, and AfterFunc/Every schedule timers. Goroutines doing
// network I/O must hand their results back through Post; state machines never lock.
//
// A Loop created with New is driven by Run. A Loop created with NewManual never
// runs by itself: tests call Advance to move virtual time and Drain to run queued
// tasks, which makes every interleaving deterministic.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Scheduler is the subset of Loop the state machines depend on.
type Scheduler interface {
	Now() time.Time
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) *Timer
	Every(d time.Duration, fn func()) *Timer
}

// Loop is a cooperative executor with a FIFO task queue and a timer list.
type Loop struct {
	mu      sync.Mutex
	manual  bool
	current time.Time
	seq     uint64
	tasks   []func()
	timers  []*Timer
	wake    chan struct{}
}

// New returns a loop driven by wall-clock time. Call Run on exactly one goroutine.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// NewManual returns a loop whose time only moves on Advance.
func NewManual(start time.Time) *Loop {
	return &Loop{manual: true, current: start, wake: make(chan struct{}, 1)}
}

// Timer is a pending one-shot or recurring callback.
type Timer struct {
	loop     *Loop
	deadline time.Time
	interval time.Duration
	fn       func()
	seq      uint64
	stopped  bool
	fired    bool
}

// Stop prevents the timer from firing again. Returns false if it already fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	l.removeTimerLocked(t)
	return true
}

// Active reports whether the timer will still fire.
func (t *Timer) Active() bool {
	if t == nil {
		return false
	}
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return !t.stopped && !t.fired
}

func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nowLocked()
}

func (l *Loop) nowLocked() time.Time {
	if l.manual {
		return l.current
	}
	return time.Now()
}

// Post queues fn behind every task already queued. Safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.notify()
}

// AfterFunc runs fn on the loop once d has elapsed. A non-positive d behaves like Post.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	return l.schedule(d, 0, fn)
}

// Every runs fn on the loop every d until the timer is stopped.
func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	if d <= 0 {
		panic("scheduler: non-positive interval for Every")
	}
	return l.schedule(d, d, fn)
}

func (l *Loop) schedule(d, interval time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	l.seq++
	t := &Timer{
		loop:     l,
		deadline: l.nowLocked().Add(d),
		interval: interval,
		fn:       fn,
		seq:      l.seq,
	}
	l.timers = append(l.timers, t)
	l.mu.Unlock()
	l.notify()
	return t
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) removeTimerLocked(t *Timer) {
	for i, pending := range l.timers {
		if pending == t {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return
		}
	}
}

// nextDueLocked returns the earliest timer due at or before target, ties broken by creation order.
func (l *Loop) nextDueLocked(target time.Time) *Timer {
	var next *Timer
	for _, t := range l.timers {
		if t.deadline.After(target) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) ||
			(t.deadline.Equal(next.deadline) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

// fire pops a due timer, reschedules it when recurring, and runs it.
func (l *Loop) fire(t *Timer) {
	l.mu.Lock()
	if t.stopped || t.fired {
		l.mu.Unlock()
		return
	}
	l.removeTimerLocked(t)
	if t.interval > 0 {
		t.deadline = t.deadline.Add(t.interval)
		l.seq++
		t.seq = l.seq
		l.timers = append(l.timers, t)
	} else {
		t.fired = true
	}
	l.mu.Unlock()
	t.fn()
}

// Drain runs queued tasks, including tasks queued by those tasks, until the queue is empty.
// On a manual loop it also fires timers that are already due without moving time.
func (l *Loop) Drain() {
	for {
		l.drainTasks()
		if !l.manual {
			return
		}
		l.mu.Lock()
		next := l.nextDueLocked(l.current)
		l.mu.Unlock()
		if next == nil {
			return
		}
		l.fire(next)
	}
}

func (l *Loop) drainTasks() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		task()
	}
}

// Advance moves a manual loop forward by d, firing due timers in deadline order.
// Queued tasks are drained before the first timer and after every timer.
func (l *Loop) Advance(d time.Duration) {
	l.mu.Lock()
	target := l.current.Add(d)
	l.mu.Unlock()

	l.Drain()
	for {
		l.mu.Lock()
		next := l.nextDueLocked(target)
		if next == nil {
			l.current = target
			l.mu.Unlock()
			l.Drain()
			return
		}
		if next.deadline.After(l.current) {
			l.current = next.deadline
		}
		l.mu.Unlock()
		l.fire(next)
		l.Drain()
	}
}

// PendingTimers returns the number of timers that will still fire.
func (l *Loop) PendingTimers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Run drives a wall-clock loop until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.drainTasks()

		l.mu.Lock()
		next := l.nextDueLocked(l.nowLocked())
		l.mu.Unlock()
		if next != nil {
			l.fire(next)
			continue
		}

		wait := l.untilNextDeadline()
		var timerC <-chan time.Time
		if wait >= 0 {
			timer := time.NewTimer(wait)
			timerC = timer.C
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-l.wake:
				timer.Stop()
			case <-timerC:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// untilNextDeadline returns the wait until the earliest timer, or -1 without timers.
func (l *Loop) untilNextDeadline() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 {
		return -1
	}
	earliest := l.timers[0].deadline
	for _, t := range l.timers[1:] {
		if t.deadline.Before(earliest) {
			earliest = t.deadline
		}
	}
	wait := earliest.Sub(l.nowLocked())
	if wait < 0 {
		return 0
	}
	return wait
}

// Call runs fn on a wall-clock loop and waits for it to finish.
// It must not be called from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
