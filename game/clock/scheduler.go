package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer cancels a scheduled callback. Stop is idempotent; after it returns
// from the executor's goroutine the callback will not run again.
type Timer interface {
	Stop()
}

// Scheduler schedules callbacks on behalf of a room.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	Every(period time.Duration, fn func()) Timer
}

// Real schedules wall-clock timers and delivers callbacks through an
// executor.
type Real struct {
	exec Executor
}

// NewReal creates a wall-clock scheduler posting to exec.
func NewReal(exec Executor) *Real {
	return &Real{exec: exec}
}

// Now returns the current wall-clock time.
func (r *Real) Now() time.Time {
	return time.Now()
}

type realTimer struct {
	stopped  atomic.Bool
	timer    *time.Timer
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (t *realTimer) Stop() {
	t.stopped.Store(true)
	t.stopOnce.Do(func() {
		if t.timer != nil {
			t.timer.Stop()
		}
		if t.stopCh != nil {
			close(t.stopCh)
		}
	})
}

// AfterFunc runs fn once after d.
func (r *Real) AfterFunc(d time.Duration, fn func()) Timer {
	t := &realTimer{}
	t.timer = time.AfterFunc(d, func() {
		r.exec.Post(func() {
			// A Stop issued while this task was queued wins.
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Every runs fn every period until stopped.
func (r *Real) Every(period time.Duration, fn func()) Timer {
	t := &realTimer{stopCh: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.exec.Post(func() {
					if t.stopped.Load() {
						return
					}
					fn()
				})
			case <-t.stopCh:
				return
			}
		}
	}()
	return t
}
