package mpv

import (
	"errors"
	"fmt"
	"sort"

	"mpv-fullbuffer/internal/media"
)

// ErrDetached is returned by commands on a handle whose file is no longer
// loaded.
var ErrDetached = errors.New("media handle detached")

// Handle is the media.Handle for one loaded file. It must only be used on
// the player's event loop.
type Handle struct {
	p        *Player
	src      string
	detached bool

	nextID int
	subs   map[media.Event]map[int]func()
}

var _ media.Handle = (*Handle)(nil)

func newHandle(p *Player, src string) *Handle {
	return &Handle{p: p, src: src, subs: make(map[media.Event]map[int]func())}
}

func (h *Handle) Position() float64 { return h.p.pos }
func (h *Handle) Duration() float64 { return h.p.dur }
func (h *Handle) Rate() float64     { return h.p.speed }
func (h *Handle) Paused() bool      { return h.p.paused }
func (h *Handle) Source() string    { return h.src }

// Detached reports whether the file this handle was created for is gone.
func (h *Handle) Detached() bool { return h.detached }

// ReadyState is derived from the retained ranges; mpv reports no
// equivalent. A player waiting on its cache has at most current data.
func (h *Handle) ReadyState() media.ReadyState {
	rs := media.ReadyStateFor(media.Normalize(h.p.ranges), h.p.pos, h.p.dur)
	if h.p.cacheWait && rs > media.HaveCurrentData {
		rs = media.HaveCurrentData
	}
	return rs
}

// Buffered returns the seekable ranges of the demuxer cache. Until mpv
// reports a cache state nothing is retained, which is not an error.
func (h *Handle) Buffered() ([]media.Range, error) {
	if h.detached {
		return nil, ErrDetached
	}
	out := make([]media.Range, len(h.p.ranges))
	copy(out, h.p.ranges)
	return out, nil
}

func (h *Handle) Seek(position float64) error {
	if h.detached {
		return ErrDetached
	}
	if err := h.p.command("seek", position, "absolute"); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	h.p.pos = position
	return nil
}

func (h *Handle) SetRate(rate float64) error {
	if h.detached {
		return ErrDetached
	}
	if err := h.p.command("set_property", "speed", rate); err != nil {
		return fmt.Errorf("set speed: %w", err)
	}
	h.p.speed = rate
	return nil
}

func (h *Handle) Play() error {
	return h.setPause(false)
}

func (h *Handle) Pause() error {
	return h.setPause(true)
}

// setPause only issues the command; the cached flag and the matching event
// follow mpv's property-change notification.
func (h *Handle) setPause(paused bool) error {
	if h.detached {
		return ErrDetached
	}
	if err := h.p.command("set_property", "pause", paused); err != nil {
		return fmt.Errorf("set pause: %w", err)
	}
	return nil
}

func (h *Handle) Subscribe(ev media.Event, fn func()) (func(), error) {
	if h.detached {
		return nil, ErrDetached
	}
	if h.subs[ev] == nil {
		h.subs[ev] = make(map[int]func())
	}
	h.nextID++
	id := h.nextID
	h.subs[ev][id] = fn
	return func() { delete(h.subs[ev], id) }, nil
}

func (h *Handle) emit(ev media.Event) {
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

func (h *Handle) detach() {
	h.detached = true
	h.subs = make(map[media.Event]map[int]func())
}
