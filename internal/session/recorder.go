package session

import (
	"log/slog"
	"time"

	"mpv-fullbuffer/internal/buffering"
	"mpv-fullbuffer/internal/platform/metrics"
)

// recorder mirrors one controller's lifecycle into the repository and,
// when configured, Prometheus.
type recorder struct {
	id      ID
	repo    Repository
	metrics *metrics.Metrics
	log     *slog.Logger
}

var _ buffering.Recorder = (*recorder)(nil)

func (r *recorder) update(fn func(*Session)) {
	if err := r.repo.Update(r.id, fn); err != nil {
		r.log.Debug("session update skipped", slog.String("error", err.Error()))
	}
}

func (r *recorder) StateChanged(s buffering.State) {
	r.update(func(sess *Session) {
		sess.State = s.String()
		if s != buffering.StateBuffering {
			sess.Trigger = ""
		}
	})
}

func (r *recorder) Classified(s buffering.Shape) {
	r.update(func(sess *Session) { sess.Shape = s.String() })
	if r.metrics != nil {
		r.metrics.IncClassifications(s.String())
	}
}

func (r *recorder) EpisodeStarted(t buffering.Trigger) {
	r.update(func(sess *Session) {
		sess.Episodes++
		sess.Trigger = string(t)
		sess.Progress = 0
	})
	if r.metrics != nil {
		r.metrics.IncEpisodesStarted(string(t))
	}
}

func (r *recorder) EpisodeFinished(o buffering.Outcome, elapsed time.Duration) {
	r.update(func(sess *Session) { sess.LastOutcome = string(o) })
	if r.metrics != nil {
		r.metrics.ObserveEpisodeFinished(string(o), elapsed)
	}
}

func (r *recorder) SeekIssued(float64) {
	if r.metrics != nil {
		r.metrics.IncSeeks()
	}
}

func (r *recorder) Progress(percent float64) {
	r.update(func(sess *Session) { sess.Progress = percent })
	if r.metrics != nil {
		r.metrics.SetBufferProgress(percent)
	}
}
