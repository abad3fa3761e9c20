package clock

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/wricardo/partyroom/logging"
)

// DefaultLoopBuffer is the number of tasks a loop queues before Post blocks.
const DefaultLoopBuffer = 256

// Executor runs posted tasks one at a time.
type Executor interface {
	Post(task func())
}

// Inline runs every task immediately on the caller's goroutine.
type Inline struct{}

// Post runs task.
func (Inline) Post(task func()) { task() }

// Loop is a single-goroutine task queue.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *log.Logger
}

// NewLoop creates a loop. Call Run in its own goroutine.
func NewLoop(buffer int, logger *log.Logger) *Loop {
	if buffer <= 0 {
		buffer = DefaultLoopBuffer
	}
	return &Loop{
		tasks:  make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logging.OrDiscard(logger),
	}
}

// Run processes tasks until Close is called.
func (l *Loop) Run() {
	for {
		select {
		case task := <-l.tasks:
			l.run(task)
		case <-l.done:
			return
		}
	}
}

// Post queues a task. Tasks posted after Close are dropped.
func (l *Loop) Post(task func()) {
	select {
	case <-l.done:
		return
	default:
	}

	select {
	case l.tasks <- task:
	case <-l.done:
	}
}

// Close stops the loop. Queued tasks that have not started are discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

// Done is closed once the loop has been closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// run executes one task; a panic is logged and does not kill the loop.
func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	task()
}
