package session

import (
	"time"

	"mpv-fullbuffer/internal/buffering"
)

// ID uniquely identifies a session.
type ID string

// Session is the observable record of one controller attached to one
// loaded media source. It is also the JSON body of the control API.
type Session struct {
	ID          ID         `json:"id"`
	Source      string     `json:"source"`
	State       string     `json:"state"`
	Shape       string     `json:"shape"`
	Episodes    int        `json:"episodes"`
	Progress    float64    `json:"progress_percent"`
	Trigger     string     `json:"trigger,omitempty"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Ended       bool       `json:"ended"`
}

// Live is the in-memory controller view of a session that has not ended.
// Window is set only while an episode is in flight.
type Live struct {
	State   string `json:"state"`
	Trigger string `json:"trigger,omitempty"`
	Window  *int   `json:"window,omitempty"`
}

// Detail is the body of GET /sessions/{session_id}.
type Detail struct {
	Session
	Live *Live `json:"live,omitempty"`
}

func liveFrom(st buffering.Status) *Live {
	l := &Live{State: st.State.String(), Trigger: string(st.Trigger)}
	if st.State == buffering.StateBuffering {
		w := st.Window
		l.Window = &w
	}
	return l
}
