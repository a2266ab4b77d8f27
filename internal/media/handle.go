// Package media defines the playback element the buffering controller
// drives, and the buffered-range queries built on top of it.
package media

// Event is a playback signal a Handle delivers to its subscribers.
type Event string

const (
	EventPlaying Event = "playing"
	EventPause   Event = "pause"
	EventWaiting Event = "waiting"
	EventSeeked  Event = "seeked"
	EventEnded   Event = "ended"
)

// ReadyState mirrors the HTML media element readiness levels.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// String returns a human-readable label for the ready state.
func (s ReadyState) String() string {
	switch s {
	case HaveNothing:
		return "nothing"
	case HaveMetadata:
		return "metadata"
	case HaveCurrentData:
		return "current_data"
	case HaveFutureData:
		return "future_data"
	case HaveEnoughData:
		return "enough_data"
	default:
		return "unknown"
	}
}

// Handle is a controllable playback element.
//
// A Handle is owned by whoever discovered it; consumers hold a non-owning
// reference. Implementations are not safe for concurrent use: every call,
// and every subscriber callback, happens on the owning event loop.
type Handle interface {
	// Position returns the current playback position in seconds.
	Position() float64
	// Duration returns the media length in seconds. It may be NaN or 0
	// while metadata is still loading.
	Duration() float64
	Rate() float64
	Paused() bool
	// Source identifies the loaded media (URL, path or virtual source).
	Source() string
	ReadyState() ReadyState
	// Buffered returns the raw retained ranges as reported by the player.
	// A player that has reported nothing yet returns no ranges and no
	// error; errors mean the handle cannot be read at all. Callers should
	// prefer RangesOf, which never fails.
	Buffered() ([]Range, error)

	Seek(position float64) error
	SetRate(rate float64) error
	Play() error
	Pause() error

	// Subscribe registers fn for ev and returns a function removing it.
	// Unsubscribing from inside a callback is allowed.
	Subscribe(ev Event, fn func()) (unsubscribe func(), err error)
}
