package buffering

import (
	"log/slog"
)

// Snapshot is the playback state captured when an episode begins.
type Snapshot struct {
	Position  float64
	Rate      float64
	WasPaused bool
}

// finish ends ep, restores playback and leaves Buffering. It is safe to call
// more than once; only the first call has any effect.
func (c *Controller) finish(ep *episode, wasPaused bool, outcome Outcome) {
	if ep.done {
		return
	}
	ep.done = true
	cancel(&ep.pending)
	c.clearSeekWait(ep)

	if ep.snapTaken {
		c.restore(Snapshot{Position: ep.snap.Position, Rate: ep.snap.Rate, WasPaused: wasPaused})
	}

	if c.episode == ep {
		c.episode = nil
	}
	if c.state == StateBuffering {
		c.setState(StateMonitoring)
	}

	elapsed := c.sched.Now().Sub(ep.started)
	c.log.Info("buffering complete, playback restored",
		slog.Int("episode", ep.id),
		slog.String("outcome", string(outcome)),
		slog.Duration("elapsed", elapsed))
	c.rec.EpisodeFinished(outcome, elapsed)
}

// restore puts position and rate back and resumes playback if it was
// running. A failed resume is logged and playback stays paused. The caller
// clears Buffering regardless of what happens here.
func (c *Controller) restore(s Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("reset after buffering", slog.Any("panic", r))
		}
	}()

	if err := c.h.Seek(s.Position); err != nil {
		c.log.Error("reset after buffering: position", slog.String("error", err.Error()))
		return
	}
	if err := c.h.SetRate(s.Rate); err != nil {
		c.log.Error("reset after buffering: rate", slog.String("error", err.Error()))
		return
	}
	if !s.WasPaused {
		if err := c.h.Play(); err != nil {
			c.log.Error("resume playback after buffering", slog.String("error", err.Error()))
		}
	}
}
