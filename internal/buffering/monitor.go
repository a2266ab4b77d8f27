package buffering

import (
	"log/slog"

	"mpv-fullbuffer/internal/media"
)

// onFrame is the per-frame poll. It reschedules itself until Stop.
func (c *Controller) onFrame() {
	c.frame = nil
	if c.state == StateIdle {
		return
	}
	c.guard("check buffer status", c.checkStall)
	if c.state != StateIdle {
		c.frame = c.sched.Frame(c.onFrame)
	}
}

// checkStall forces buffering when the buffered edge at the playback
// position stops moving before the end of the media.
func (c *Controller) checkStall() {
	d, ok := c.duration()
	if c.state != StateMonitoring || !ok {
		return
	}

	pos := c.h.Position()
	if pos >= d-c.opts.EndTolerance {
		return
	}

	coverage := media.RangesOf(c.h).CoverageAt(pos)
	if coverage > 0 && coverage == c.lastCoverage && coverage < d-c.opts.EndTolerance {
		c.log.Info("buffer stalled, forcing complete buffering", slog.Float64("buffered_end", coverage))
		c.forceBuffer(TriggerStall)
	}
	c.lastCoverage = coverage
}

func (c *Controller) onPlaying() {
	c.guard("playing handler", func() {
		if c.state != StateMonitoring {
			return
		}
		d, ok := c.duration()
		if !ok {
			return
		}
		pos := c.h.Position()

		ahead := 0.0
		if r, ok := media.RangesOf(c.h).Containing(pos); ok {
			ahead = r.End - pos
		}
		if ahead < (d-pos)*c.opts.LookaheadRatio {
			c.log.Info("little buffered ahead, forcing complete buffering", slog.Float64("ahead", ahead))
			c.forceBuffer(TriggerLookahead)
		}
	})
}

func (c *Controller) onPause() {
	c.guard("pause handler", func() {
		d, ok := c.duration()
		if c.state != StateMonitoring || !ok {
			return
		}
		if !media.RangesOf(c.h).FullyCovered(d, c.opts.EndTolerance) {
			c.log.Info("paused, using the idle time to buffer completely")
			c.forceBuffer(TriggerPause)
		}
	})
}

func (c *Controller) onWaiting() {
	c.guard("waiting handler", func() {
		if _, ok := c.duration(); c.state != StateMonitoring || !ok {
			return
		}
		c.log.Info("waiting for data, forcing complete buffering")
		c.forceBuffer(TriggerWaiting)
	})
}

func (c *Controller) onSeeked() {
	c.guard("seeked handler", c.seeks.Trigger)
}

// onEnded stops an in-flight episode: the media reached its end, so
// further seeking is pointless.
func (c *Controller) onEnded() {
	c.guard("ended handler", func() {
		if ep := c.episode; ep != nil && c.state == StateBuffering {
			c.log.Info("media ended during buffering, restoring playback")
			c.finish(ep, true, OutcomeEnded)
		}
	})
}

// evaluateSeek runs once a burst of seeks has settled. A landing outside
// every buffered range gets SeekGrace for the player's own lookahead
// before buffering is forced.
func (c *Controller) evaluateSeek() {
	if _, ok := c.duration(); c.state != StateMonitoring || !ok {
		return
	}
	pos := c.h.Position()
	if _, ok := media.RangesOf(c.h).Containing(pos); ok {
		return
	}

	c.log.Info("seek to unbuffered region detected", slog.Float64("position", pos))
	cancel(&c.seekCheck)
	c.seekCheck = c.sched.After(c.opts.SeekGrace, func() {
		c.seekCheck = nil
		c.guard("handle seek", func() {
			if _, ok := c.duration(); !ok || c.state != StateMonitoring {
				return
			}
			if c.h.ReadyState() < media.HaveFutureData {
				c.forceBuffer(TriggerSeek)
			}
		})
	})
}
