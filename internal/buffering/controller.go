// Package buffering forces a media handle to fetch and retain its entire
// content. A Controller classifies the delivery shape, watches for stalls
// and idle opportunities, drives the handle through seeks until every
// range is retained, then puts playback back the way it found it.
//
// A Controller is single-threaded: every method and every callback runs on
// the scheduler's goroutine.
package buffering

import (
	"fmt"
	"log/slog"

	"mpv-fullbuffer/internal/media"
	"mpv-fullbuffer/internal/schedule"
)

// Controller drives one media.Handle for its lifetime.
type Controller struct {
	h     media.Handle
	sched schedule.Scheduler
	log   *slog.Logger
	opts  Options
	rec   Recorder

	state State
	shape Shape

	episode  *episode
	episodes int
	progress float64

	// lastCoverage is the buffered end at the playback position seen by
	// the previous frame poll.
	lastCoverage float64

	unsubs    []func()
	frame     schedule.CancelFunc
	classify  schedule.CancelFunc
	seekCheck schedule.CancelFunc
	seeks     *schedule.Debouncer
}

// New returns an idle controller for h. rec may be nil.
func New(h media.Handle, sched schedule.Scheduler, log *slog.Logger, opts Options, rec Recorder) *Controller {
	if rec == nil {
		rec = nopRecorder{}
	}
	c := &Controller{
		h:     h,
		sched: sched,
		log:   log,
		opts:  opts.withDefaults(),
		rec:   rec,
	}
	c.seeks = schedule.NewDebouncer(sched, c.opts.SeekDebounce, func() {
		c.guard("handle seek", c.evaluateSeek)
	})
	return c
}

// Start attaches listeners, schedules classification and begins the frame
// poll. Calling Start on a running controller does nothing. If any step
// fails the controller stops itself.
func (c *Controller) Start() {
	if c.state != StateIdle {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("start buffer controller", slog.Any("panic", r))
			c.Stop()
		}
	}()

	c.setState(StateMonitoring)
	c.lastCoverage = 0
	c.detectShape()
	if err := c.subscribe(); err != nil {
		c.log.Error("start buffer controller", slog.String("error", err.Error()))
		c.Stop()
		return
	}
	c.frame = c.sched.Frame(c.onFrame)

	c.log.Info("buffer controller started", slog.String("source", c.h.Source()))
}

// Stop detaches every listener and cancels all pending work. An in-flight
// episode is abandoned and playback restored. Calling Stop on an idle
// controller does nothing.
func (c *Controller) Stop() {
	if c.state == StateIdle {
		return
	}

	if ep := c.episode; ep != nil {
		c.log.Info("stopping during buffering, restoring playback")
		c.finish(ep, ep.snap.WasPaused, OutcomeStopped)
	}
	c.setState(StateIdle)

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("stop buffer controller", slog.Any("panic", r))
		}
	}()

	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	cancel(&c.frame)
	cancel(&c.classify)
	cancel(&c.seekCheck)
	c.seeks.Stop()

	c.log.Info("buffer controller stopped")
}

// ForceBuffer starts a buffering episode on demand. It returns false when
// the controller is idle or already buffering.
func (c *Controller) ForceBuffer() bool {
	return c.forceBuffer(TriggerManual)
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Shape returns the classified delivery shape.
func (c *Controller) Shape() Shape {
	return c.shape
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	s := Status{
		State:    c.state,
		Shape:    c.shape,
		Episodes: c.episodes,
		Progress: c.progress,
	}
	if ep := c.episode; ep != nil {
		s.Trigger = ep.trigger
		s.Window = ep.window
	}
	return s
}

func (c *Controller) subscribe() error {
	handlers := []struct {
		ev media.Event
		fn func()
	}{
		{media.EventPlaying, c.onPlaying},
		{media.EventPause, c.onPause},
		{media.EventWaiting, c.onWaiting},
		{media.EventSeeked, c.onSeeked},
		{media.EventEnded, c.onEnded},
	}
	for _, s := range handlers {
		unsub, err := c.h.Subscribe(s.ev, s.fn)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", s.ev, err)
		}
		c.unsubs = append(c.unsubs, unsub)
	}
	return nil
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.rec.StateChanged(s)
}

// guard runs fn, logging instead of propagating a panic.
func (c *Controller) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(what, slog.Any("panic", r))
		}
	}()
	fn()
}

func cancel(fn *schedule.CancelFunc) {
	if *fn != nil {
		(*fn)()
		*fn = nil
	}
}
