package buffering

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"mpv-fullbuffer/internal/media"
	"mpv-fullbuffer/internal/schedule"
)

// episode is one snapshot → forced buffering → restore cycle.
type episode struct {
	id       int
	trigger  Trigger
	started  time.Time
	duration float64

	snap      Snapshot
	snapTaken bool

	windows []window
	window  int
	polls   int

	pending     schedule.CancelFunc
	unsubSeeked func()
	done        bool
}

// forceBuffer enters Buffering and runs the strategy for the classified
// shape. The state check and the state change happen in the same step, so
// at most one episode is ever in flight. Media without a known duration is
// refused before the handle is touched.
func (c *Controller) forceBuffer(trigger Trigger) bool {
	if c.state != StateMonitoring {
		return false
	}
	d, ok := c.duration()
	if !ok {
		c.log.Warn("media duration unknown, not buffering",
			slog.String("trigger", string(trigger)),
			slog.Float64("duration", d))
		return false
	}
	c.setState(StateBuffering)
	c.episodes++
	ep := &episode{id: c.episodes, trigger: trigger, started: c.sched.Now(), duration: d}
	c.episode = ep
	c.rec.EpisodeStarted(trigger)

	c.step(ep, func() error {
		ep.snap = Snapshot{
			Position:  c.h.Position(),
			Rate:      c.h.Rate(),
			WasPaused: c.h.Paused(),
		}
		ep.snapTaken = true

		if !ep.snap.WasPaused {
			if err := c.h.Pause(); err != nil {
				return fmt.Errorf("pause: %w", err)
			}
		}

		c.log.Info("starting full buffering",
			slog.Int("episode", ep.id),
			slog.String("trigger", string(trigger)),
			slog.String("shape", c.shape.String()))

		// Unknown shape means classification is still settling; the
		// windowed walk works for both shapes.
		if c.shape == ShapeProgressive {
			return c.bufferProgressive(ep)
		}
		return c.bufferSegmented(ep)
	})
	return true
}

// step runs fn for ep unless the episode is over. Errors and panics end the
// episode with playback left paused.
func (c *Controller) step(ep *episode, fn func() error) {
	if !c.current(ep) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.fail(ep, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		c.fail(ep, err)
	}
}

// duration returns the media length and whether it is usable: live and
// not-yet-probed media report NaN, infinity or zero.
func (c *Controller) duration() (float64, bool) {
	d := c.h.Duration()
	return d, !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

func (c *Controller) current(ep *episode) bool {
	return !ep.done && c.episode == ep && c.state == StateBuffering
}

func (c *Controller) fail(ep *episode, err error) {
	c.log.Error("buffering failed", slog.Int("episode", ep.id), slog.String("error", err.Error()))
	c.finish(ep, true, OutcomeFailed)
}

// after schedules fn as a step of ep.
func (c *Controller) after(ep *episode, d time.Duration, fn func() error) {
	ep.pending = c.sched.After(d, func() {
		ep.pending = nil
		c.step(ep, fn)
	})
}

// seekThen seeks to position and runs next once the handle reports the
// seek completed.
func (c *Controller) seekThen(ep *episode, position float64, next func() error) error {
	c.clearSeekWait(ep)
	unsub, err := c.h.Subscribe(media.EventSeeked, func() {
		c.clearSeekWait(ep)
		c.step(ep, next)
	})
	if err != nil {
		return fmt.Errorf("subscribe seeked: %w", err)
	}
	ep.unsubSeeked = unsub

	c.rec.SeekIssued(position)
	if err := c.h.Seek(position); err != nil {
		return fmt.Errorf("seek to %.1f: %w", position, err)
	}
	return nil
}

func (c *Controller) clearSeekWait(ep *episode) {
	if ep.unsubSeeked != nil {
		ep.unsubSeeked()
		ep.unsubSeeked = nil
	}
}

// bufferProgressive seeks once near the end, which makes a progressive
// download run to completion, then polls until the whole file is retained.
func (c *Controller) bufferProgressive(ep *episode) error {
	target := ep.duration - c.opts.EndSeekOffset
	c.log.Info("starting progressive buffering", slog.Float64("seek_to", target))
	return c.seekThen(ep, target, func() error {
		return c.pollProgressive(ep)
	})
}

func (c *Controller) pollProgressive(ep *episode) error {
	rs := media.RangesOf(c.h)
	c.reportProgress(rs.MaxEnd() / ep.duration * 100)

	if rs.FullyCovered(ep.duration, c.opts.EndTolerance) {
		c.log.Info("media fully buffered", slog.Int("episode", ep.id))
		c.finish(ep, ep.snap.WasPaused, OutcomeComplete)
		return nil
	}
	if c.exhausted(ep) {
		return nil
	}
	c.after(ep, c.opts.ProgressivePoll, func() error {
		return c.pollProgressive(ep)
	})
	return nil
}

// bufferSegmented walks fixed windows in order. Segmented players fetch
// relative to the playback position, so a single seek to the end would only
// load the final chunk; visiting every window loads them all.
func (c *Controller) bufferSegmented(ep *episode) error {
	ep.windows = planWindows(ep.duration, c.opts.WindowSize.Seconds())
	ep.window = 0
	return c.bufferWindow(ep)
}

func (c *Controller) bufferWindow(ep *episode) error {
	if ep.window >= len(ep.windows) {
		c.log.Info("all windows buffered", slog.Int("episode", ep.id), slog.Int("windows", len(ep.windows)))
		c.finish(ep, ep.snap.WasPaused, OutcomeComplete)
		return nil
	}

	w := ep.windows[ep.window]
	ep.polls = 0
	c.reportProgress(w.Start / ep.duration * 100)
	c.log.Info("buffering window",
		slog.Int("window", ep.window+1),
		slog.Int("windows", len(ep.windows)),
		slog.Float64("start", w.Start))

	return c.seekThen(ep, w.Start, func() error {
		return c.pollWindow(ep, w)
	})
}

func (c *Controller) pollWindow(ep *episode, w window) error {
	if media.RangesOf(c.h).Covers(w.Start, w.End) {
		ep.window++
		c.after(ep, c.opts.WindowSettle, func() error {
			return c.bufferWindow(ep)
		})
		return nil
	}
	if c.exhausted(ep) {
		return nil
	}
	c.after(ep, c.opts.WindowPoll, func() error {
		return c.pollWindow(ep, w)
	})
	return nil
}

// exhausted counts a poll against PollCeiling and gives up on the episode
// once the ceiling is reached.
func (c *Controller) exhausted(ep *episode) bool {
	ep.polls++
	if c.opts.PollCeiling == 0 || ep.polls < c.opts.PollCeiling {
		return false
	}
	c.log.Warn("buffering made no progress, giving up",
		slog.Int("episode", ep.id),
		slog.Int("polls", ep.polls))
	c.finish(ep, ep.snap.WasPaused, OutcomeGaveUp)
	return true
}

func (c *Controller) reportProgress(percent float64) {
	percent = math.Min(100, math.Max(0, percent))
	c.progress = percent
	c.log.Info("buffering progress", slog.String("percent", fmt.Sprintf("%.1f", percent)))
	c.rec.Progress(percent)
}
