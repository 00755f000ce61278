// Package event provides the single-threaded dispatch loop, cancellable
// deferred tasks, and the named-topic emitter the topology adaptor is built on.
//
// Every piece of adaptor state is owned by one Loop. Other goroutines (clock
// timers, protocol readers, the CLI) never touch that state directly; they
// Post closures onto the loop, which runs them one at a time in arrival order.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a FIFO run queue drained by a single goroutine.
type Loop struct {
	clock Clock

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
}

// NewLoop creates a loop whose deferred tasks are scheduled on clock.
// A nil clock means SystemClock.
func NewLoop(clock Clock) *Loop {
	if clock == nil {
		clock = SystemClock
	}
	return &Loop{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

// Clock returns the clock deferred tasks are scheduled on.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Post enqueues fn. It is safe to call from any goroutine, including from a
// function already running on the loop. Post returns false once the loop is
// closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// RunPending runs queued functions on the calling goroutine until the queue
// is empty, including functions posted while draining. It returns how many
// ran. RunPending must not be called concurrently with Run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		fn, ok := l.pop()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Run drains the queue until ctx is done or Close is called. Functions still
// queued at Close are run before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			l.RunPending()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Close stops accepting new work and wakes Run so it can return.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

const (
	taskPending int32 = iota
	taskFired
	taskCanceled
)

// Task is a one-shot deferred function scheduled on a Loop.
type Task struct {
	state atomic.Int32
	timer Timer
}

// AfterFunc schedules fn to run on the loop after d. The clock only posts
// into the loop; fn itself always runs on the loop, and only if Cancel was
// not called first.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.state.CompareAndSwap(taskPending, taskFired) {
				fn()
			}
		})
	})
	return t
}

// Cancel prevents the task from running. It returns true only if this call
// is what stopped it; calling it again, or after the task ran, returns false.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	if !t.state.CompareAndSwap(taskPending, taskCanceled) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Pending reports whether the task has neither run nor been canceled.
func (t *Task) Pending() bool {
	return t != nil && t.state.Load() == taskPending
}
