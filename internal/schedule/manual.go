package schedule

import "time"

// Manual is a deterministic Scheduler driven by a virtual clock. Nothing
// runs until Advance is called. It is not safe for concurrent use.
type Manual struct {
	// FrameInterval is the virtual delay used by Frame.
	FrameInterval time.Duration

	epoch time.Time
	now   time.Duration
	seq   uint64
	queue []*manualTimer
}

type manualTimer struct {
	due       time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

// NewManual returns a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{
		FrameInterval: DefaultFrameInterval,
		epoch:         time.Unix(0, 0).UTC(),
	}
}

// Now implements Scheduler.Now.
func (m *Manual) Now() time.Time {
	return m.epoch.Add(m.now)
}

// Elapsed returns the virtual time since creation.
func (m *Manual) Elapsed() time.Duration {
	return m.now
}

// After implements Scheduler.After.
func (m *Manual) After(d time.Duration, fn func()) CancelFunc {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{due: m.now + d, seq: m.seq, fn: fn}
	m.queue = append(m.queue, t)
	return func() { t.cancelled = true }
}

// Frame implements Scheduler.Frame.
func (m *Manual) Frame(fn func()) CancelFunc {
	return m.After(m.FrameInterval, fn)
}

// Advance moves the clock forward by d, running every callback that falls
// due in order of due time, then scheduling order. Callbacks scheduled
// while advancing run too if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	end := m.now + d
	for {
		t := m.pop(end)
		if t == nil {
			break
		}
		m.now = t.due
		t.fn()
	}
	m.now = end
}

// Flush runs everything already due without moving the clock.
func (m *Manual) Flush() {
	m.Advance(0)
}

// Pending returns the number of live scheduled callbacks.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.queue {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (m *Manual) pop(limit time.Duration) *manualTimer {
	best := -1
	live := m.queue[:0]
	for _, t := range m.queue {
		if t.cancelled {
			continue
		}
		live = append(live, t)
		if t.due > limit {
			continue
		}
		i := len(live) - 1
		if best < 0 || t.due < live[best].due || (t.due == live[best].due && t.seq < live[best].seq) {
			best = i
		}
	}
	m.queue = live
	if best < 0 {
		return nil
	}
	t := m.queue[best]
	m.queue = append(m.queue[:best], m.queue[best+1:]...)
	return t
}
