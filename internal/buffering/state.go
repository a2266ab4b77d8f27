package buffering

// State is the controller lifecycle state. It is the only mutual-exclusion
// mechanism: every buffering trigger checks and sets it synchronously.
type State int

const (
	// StateIdle means the controller is not attached to its handle.
	StateIdle State = iota
	// StateMonitoring means listeners and the frame poll are live.
	StateMonitoring
	// StateBuffering means a forced-buffering episode is in flight.
	StateBuffering
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateBuffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// Shape is the delivery shape of the controlled media.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeProgressive is one continuous resource, buffered by seeking forward.
	ShapeProgressive
	// ShapeSegmented is independently fetched time chunks.
	ShapeSegmented
)

func (s Shape) String() string {
	switch s {
	case ShapeProgressive:
		return "progressive"
	case ShapeSegmented:
		return "segmented"
	default:
		return "unknown"
	}
}

// Trigger names what started a buffering episode.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerStall     Trigger = "stall"
	TriggerLookahead Trigger = "lookahead"
	TriggerPause     Trigger = "pause"
	TriggerWaiting   Trigger = "waiting"
	TriggerSeek      Trigger = "seek"
)

// Outcome names how a buffering episode ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeEnded    Outcome = "ended"
	OutcomeFailed   Outcome = "failed"
	OutcomeGaveUp   Outcome = "gave_up"
	OutcomeStopped  Outcome = "stopped"
)

// Status is a point-in-time view of a controller.
type Status struct {
	State    State
	Shape    Shape
	Episodes int
	// Progress is the last reported buffering progress, 0-100.
	Progress float64
	// Trigger and Window describe the in-flight episode, if any.
	Trigger Trigger
	Window  int
}
