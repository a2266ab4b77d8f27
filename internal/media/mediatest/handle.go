// Package mediatest provides a scriptable media.Handle for tests.
package mediatest

import (
	"sort"

	"mpv-fullbuffer/internal/media"
)

// Handle is an in-memory media.Handle. Fields may be set directly by tests;
// the command methods record every call.
type Handle struct {
	Pos       float64
	Dur       float64
	Speed     float64
	IsPaused  bool
	Src       string
	Ready     media.ReadyState
	Ranges    []media.Range
	RangesErr error

	// Error and panic injection.
	SeekErr      error
	SetRateErr   error
	PlayErr      error
	PauseErr     error
	SubscribeErr error
	PanicOnRead  bool

	// OnSeek runs after a successful Seek; tests use it to schedule the
	// seek-completed signal.
	OnSeek func(position float64)

	// OnPlay and OnPause run after the corresponding command succeeds.
	OnPlay  func()
	OnPause func()

	Seeks  []float64
	Rates  []float64
	Plays  int
	Pauses int

	nextID int
	subs   map[media.Event]map[int]func()
}

// New returns a paused handle at position 0 with rate 1.
func New(src string, duration float64) *Handle {
	return &Handle{
		Dur:      duration,
		Speed:    1,
		IsPaused: true,
		Src:      src,
		Ready:    media.HaveMetadata,
	}
}

func (h *Handle) Position() float64 { return h.Pos }
func (h *Handle) Duration() float64 { return h.Dur }
func (h *Handle) Rate() float64     { return h.Speed }
func (h *Handle) Paused() bool      { return h.IsPaused }
func (h *Handle) Source() string    { return h.Src }

func (h *Handle) ReadyState() media.ReadyState { return h.Ready }

func (h *Handle) Buffered() ([]media.Range, error) {
	if h.PanicOnRead {
		panic("mediatest: buffered accessor panicked")
	}
	if h.RangesErr != nil {
		return nil, h.RangesErr
	}
	out := make([]media.Range, len(h.Ranges))
	copy(out, h.Ranges)
	return out, nil
}

func (h *Handle) Seek(position float64) error {
	if h.SeekErr != nil {
		return h.SeekErr
	}
	h.Seeks = append(h.Seeks, position)
	h.Pos = position
	if h.OnSeek != nil {
		h.OnSeek(position)
	}
	return nil
}

func (h *Handle) SetRate(rate float64) error {
	if h.SetRateErr != nil {
		return h.SetRateErr
	}
	h.Rates = append(h.Rates, rate)
	h.Speed = rate
	return nil
}

func (h *Handle) Play() error {
	if h.PlayErr != nil {
		return h.PlayErr
	}
	h.Plays++
	h.IsPaused = false
	if h.OnPlay != nil {
		h.OnPlay()
	}
	return nil
}

func (h *Handle) Pause() error {
	if h.PauseErr != nil {
		return h.PauseErr
	}
	h.Pauses++
	h.IsPaused = true
	if h.OnPause != nil {
		h.OnPause()
	}
	return nil
}

func (h *Handle) Subscribe(ev media.Event, fn func()) (func(), error) {
	if h.SubscribeErr != nil {
		return nil, h.SubscribeErr
	}
	if h.subs == nil {
		h.subs = make(map[media.Event]map[int]func())
	}
	if h.subs[ev] == nil {
		h.subs[ev] = make(map[int]func())
	}
	h.nextID++
	id := h.nextID
	h.subs[ev][id] = fn
	return func() { delete(h.subs[ev], id) }, nil
}

// Emit delivers ev to its subscribers in subscription order.
func (h *Handle) Emit(ev media.Event) {
	ids := make([]int, 0, len(h.subs[ev]))
	for id := range h.subs[ev] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := h.subs[ev][id]; ok {
			fn()
		}
	}
}

// Subscribers returns the number of live subscriptions for ev.
func (h *Handle) Subscribers(ev media.Event) int {
	return len(h.subs[ev])
}
