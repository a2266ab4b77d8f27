// Package schedule provides the single control flow the buffering
// controller runs on: delayed callbacks, per-frame callbacks and a
// trailing debouncer, all serialized on one goroutine.
package schedule

import "time"

// DefaultFrameInterval approximates a 60 Hz render cadence.
const DefaultFrameInterval = time.Second / 60

// CancelFunc cancels a scheduled callback. Cancelling is idempotent and
// takes effect even when the callback is already queued.
type CancelFunc func()

// Scheduler runs callbacks later on the owning event loop.
type Scheduler interface {
	Now() time.Time
	// After runs fn once, d from now.
	After(d time.Duration, fn func()) CancelFunc
	// Frame runs fn once on the next frame tick.
	Frame(fn func()) CancelFunc
}
