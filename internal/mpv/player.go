package mpv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"mpv-fullbuffer/internal/media"
)

// Observed properties, keyed by the id passed to observe_property.
var observed = []string{
	"time-pos",
	"duration",
	"speed",
	"pause",
	"paused-for-cache",
	"path",
	"demuxer-cache-state",
	"eof-reached",
}

const DefaultCommandTimeout = 2 * time.Second

type ipc interface {
	Command(ctx context.Context, args ...any) (json.RawMessage, error)
	Events() <-chan Event
}

type poster interface {
	Post(fn func()) bool
}

// Player mirrors mpv's playback state on the event loop and hands out one
// Handle per loaded file.
type Player struct {
	ipc     ipc
	loop    poster
	log     *slog.Logger
	timeout time.Duration

	// OnLoad receives the handle for a newly loaded file. OnUnload
	// receives a handle just before it is detached. Both run on the loop.
	OnLoad   func(*Handle)
	OnUnload func(*Handle)

	// Loop-owned property cache.
	pos       float64
	dur       float64
	speed     float64
	paused    bool
	cacheWait bool
	path      string
	eof       bool
	ranges    []media.Range

	current *Handle
}

// NewPlayer returns a Player issuing commands through client and running
// state changes on loop. A non-positive timeout uses DefaultCommandTimeout.
func NewPlayer(client ipc, loop poster, log *slog.Logger, timeout time.Duration) *Player {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Player{
		ipc:     client,
		loop:    loop,
		log:     log,
		timeout: timeout,
		dur:     math.NaN(),
		speed:   1,
		paused:  true,
	}
}

// Run observes the player's properties, announces an already loaded file,
// then forwards events to the loop until ctx is done or the connection
// ends.
func (p *Player) Run(ctx context.Context) error {
	for i, name := range observed {
		if _, err := p.ipc.Command(ctx, "observe_property", i+1, name); err != nil {
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}

	var path string
	if data, err := p.ipc.Command(ctx, "get_property", "path"); err == nil {
		_ = json.Unmarshal(data, &path)
	}
	if path != "" {
		p.loop.Post(func() { p.load(path) })
	}

	events := p.ipc.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				p.loop.Post(func() { p.unload("connection closed") })
				return ErrClosed
			}
			if !p.loop.Post(func() { p.dispatch(ev) }) {
				return fmt.Errorf("forward mpv event: loop stopped")
			}
		}
	}
}

// Current returns the handle for the loaded file, or nil.
func (p *Player) Current() *Handle {
	return p.current
}

func (p *Player) dispatch(ev Event) {
	switch ev.Event {
	case "property-change":
		p.propertyChanged(ev.Name, ev.Data)
	case "playback-restart":
		p.emit(media.EventSeeked)
	case "file-loaded":
		p.fileLoaded()
	case "end-file":
		p.emit(media.EventEnded)
		p.unload("end-file: " + ev.Reason)
	case "shutdown":
		p.unload("player shutdown")
	}
}

func (p *Player) propertyChanged(name string, data json.RawMessage) {
	switch name {
	case "time-pos":
		p.pos = decodeFloat(data, 0)
	case "duration":
		p.dur = decodeFloat(data, math.NaN())
	case "speed":
		p.speed = decodeFloat(data, 1)
	case "path":
		p.path = ""
		_ = json.Unmarshal(data, &p.path)
	case "demuxer-cache-state":
		p.ranges = decodeCacheState(data)
	case "pause":
		was := p.paused
		p.paused = decodeBool(data)
		if p.paused == was {
			return
		}
		if p.paused {
			p.emit(media.EventPause)
		} else {
			p.emit(media.EventPlaying)
		}
	case "paused-for-cache":
		was := p.cacheWait
		p.cacheWait = decodeBool(data)
		switch {
		case p.cacheWait && !was:
			p.emit(media.EventWaiting)
		case !p.cacheWait && was && !p.paused:
			p.emit(media.EventPlaying)
		}
	case "eof-reached":
		was := p.eof
		p.eof = decodeBool(data)
		if p.eof && !was {
			p.emit(media.EventEnded)
		}
	}
}

func (p *Player) fileLoaded() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	path := p.path
	if data, err := p.ipc.Command(ctx, "get_property", "path"); err == nil {
		_ = json.Unmarshal(data, &path)
	} else {
		p.log.Warn("read loaded path", slog.String("error", err.Error()))
	}
	p.load(path)
}

// load detaches the previous handle and announces a fresh one for src.
// Every load is a new navigation.
func (p *Player) load(src string) {
	if p.current != nil && p.current.src == src && !p.current.detached {
		return
	}
	p.unload("new file loaded")

	p.path = src
	p.pos = 0
	p.eof = false
	p.ranges = nil
	p.refreshCacheState()

	h := newHandle(p, src)
	p.current = h
	p.log.Info("file loaded", slog.String("source", src))
	if p.OnLoad != nil {
		p.OnLoad(h)
	}
}

// refreshCacheState reads demuxer-cache-state directly: mpv may have sent
// the change for the new file before file-loaded.
func (p *Player) refreshCacheState() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	data, err := p.ipc.Command(ctx, "get_property", "demuxer-cache-state")
	if err != nil {
		p.log.Debug("read cache state", slog.String("error", err.Error()))
		return
	}
	p.ranges = decodeCacheState(data)
}

func (p *Player) unload(reason string) {
	h := p.current
	if h == nil {
		return
	}
	p.current = nil
	if p.OnUnload != nil {
		p.OnUnload(h)
	}
	h.detach()
	p.log.Info("file unloaded", slog.String("source", h.src), slog.String("reason", reason))
}

func (p *Player) emit(ev media.Event) {
	if p.current != nil {
		p.current.emit(ev)
	}
}

func (p *Player) command(args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_, err := p.ipc.Command(ctx, args...)
	return err
}

func decodeFloat(data json.RawMessage, fallback float64) float64 {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil || v == nil {
		return fallback
	}
	return *v
}

func decodeBool(data json.RawMessage) bool {
	var v bool
	_ = json.Unmarshal(data, &v)
	return v
}

type cacheState struct {
	SeekableRanges []media.Range `json:"seekable-ranges"`
}

// decodeCacheState extracts seekable ranges from demuxer-cache-state. An
// unavailable property yields no ranges.
func decodeCacheState(data json.RawMessage) []media.Range {
	var st *cacheState
	if err := json.Unmarshal(data, &st); err != nil || st == nil {
		return nil
	}
	return st.SeekableRanges
}
