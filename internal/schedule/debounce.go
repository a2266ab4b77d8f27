package schedule

import "time"

// Debouncer collapses bursts of Trigger calls into a single call of fn,
// wait after the last Trigger. Not safe for concurrent use; call it from
// the scheduler's goroutine.
type Debouncer struct {
	sched  Scheduler
	wait   time.Duration
	fn     func()
	cancel CancelFunc
}

// NewDebouncer returns a trailing debouncer for fn.
func NewDebouncer(sched Scheduler, wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{sched: sched, wait: wait, fn: fn}
}

// Trigger restarts the quiet period.
func (d *Debouncer) Trigger() {
	d.Stop()
	d.cancel = d.sched.After(d.wait, func() {
		d.cancel = nil
		d.fn()
	})
}

// Stop drops a pending call, if any.
func (d *Debouncer) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	return d.cancel != nil
}
