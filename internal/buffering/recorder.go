package buffering

import "time"

// Recorder observes controller activity. Calls happen on the event loop
// and never influence control flow.
type Recorder interface {
	StateChanged(state State)
	Classified(shape Shape)
	EpisodeStarted(trigger Trigger)
	EpisodeFinished(outcome Outcome, elapsed time.Duration)
	SeekIssued(position float64)
	Progress(percent float64)
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(State)                     {}
func (nopRecorder) Classified(Shape)                       {}
func (nopRecorder) EpisodeStarted(Trigger)                 {}
func (nopRecorder) EpisodeFinished(Outcome, time.Duration) {}
func (nopRecorder) SeekIssued(float64)                     {}
func (nopRecorder) Progress(float64)                       {}
