package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopClosed is returned when work is posted to a loop that has exited.
var ErrLoopClosed = errors.New("event loop closed")

const taskQueueSize = 1024

// Loop executes posted closures one at a time, in FIFO order, on the
// goroutine running Run. It is the only place controller state is touched.
type Loop struct {
	tasks         chan func()
	frameInterval time.Duration
	log           *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop returns a Loop whose Frame callbacks fire every frameInterval.
// If frameInterval <= 0, DefaultFrameInterval is used.
func NewLoop(frameInterval time.Duration, log *slog.Logger) *Loop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Loop{
		tasks:         make(chan func(), taskQueueSize),
		frameInterval: frameInterval,
		log:           log,
		done:          make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. A loop cannot be restarted.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeOnce.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event loop task panicked", slog.Any("panic", r))
		}
	}()
	fn()
}

// Post queues fn. It returns false if the loop has exited.
// Post must not be called from the loop goroutine when the queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Now implements Scheduler.Now.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// After implements Scheduler.After.
func (l *Loop) After(d time.Duration, fn func()) CancelFunc {
	var cancelled atomic.Bool
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		t.Stop()
	}
}

// Frame implements Scheduler.Frame.
func (l *Loop) Frame(fn func()) CancelFunc {
	return l.After(l.frameInterval, fn)
}
