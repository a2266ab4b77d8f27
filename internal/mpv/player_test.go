package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mpv-fullbuffer/internal/buffering"
	"mpv-fullbuffer/internal/media"
	"mpv-fullbuffer/internal/schedule"
)

type fakeIPC struct {
	mu       sync.Mutex
	commands [][]any
	props    map[string]any
	fail     error
	events   chan Event
}

func newFakeIPC() *fakeIPC {
	return &fakeIPC{props: map[string]any{}, events: make(chan Event, 16)}
}

func (f *fakeIPC) Command(_ context.Context, args ...any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, args)
	if f.fail != nil {
		return nil, f.fail
	}
	if args[0] == "get_property" {
		return json.Marshal(f.props[args[1].(string)])
	}
	return nil, nil
}

func (f *fakeIPC) Events() <-chan Event { return f.events }

func (f *fakeIPC) sent() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.commands...)
}

// inlinePoster runs posted work immediately.
type inlinePoster struct{}

func (inlinePoster) Post(fn func()) bool {
	fn()
	return true
}

func change(name string, v any) Event {
	data, _ := json.Marshal(v)
	return Event{Event: "property-change", Name: name, Data: data}
}

func newTestPlayer(t *testing.T) (*Player, *fakeIPC, *[]*Handle) {
	t.Helper()
	f := newFakeIPC()
	p := NewPlayer(f, inlinePoster{}, discardLogger(), 0)
	var loaded []*Handle
	p.OnLoad = func(h *Handle) { loaded = append(loaded, h) }
	return p, f, &loaded
}

func record(h *Handle, evs ...media.Event) *[]media.Event {
	var got []media.Event
	for _, ev := range evs {
		ev := ev
		h.Subscribe(ev, func() { got = append(got, ev) })
	}
	return &got
}

func TestPlayer_file_loaded_creates_fresh_handle(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	var unloaded []*Handle
	p.OnUnload = func(h *Handle) { unloaded = append(unloaded, h) }

	f.props["path"] = "https://cdn.example.com/a.mp4"
	p.dispatch(Event{Event: "file-loaded"})
	require.Len(t, *loaded, 1)
	first := (*loaded)[0]
	require.Equal(t, "https://cdn.example.com/a.mp4", first.Source())
	require.Same(t, first, p.Current())

	f.props["path"] = "https://cdn.example.com/b.m3u8"
	p.dispatch(Event{Event: "file-loaded"})
	require.Len(t, *loaded, 2)
	require.Equal(t, []*Handle{first}, unloaded)
	require.True(t, first.Detached())
	require.ErrorIs(t, first.Seek(3), ErrDetached)
	require.ErrorIs(t, first.Play(), ErrDetached)
	_, err := first.Buffered()
	require.ErrorIs(t, err, ErrDetached)
}

func TestPlayer_event_mapping(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	h := (*loaded)[0]
	got := record(h, media.EventPlaying, media.EventPause, media.EventWaiting, media.EventSeeked, media.EventEnded)

	p.dispatch(change("pause", false))
	p.dispatch(change("pause", false))
	p.dispatch(change("paused-for-cache", true))
	p.dispatch(change("paused-for-cache", false))
	p.dispatch(change("pause", true))
	p.dispatch(Event{Event: "playback-restart"})
	p.dispatch(change("eof-reached", true))

	require.Equal(t, []media.Event{
		media.EventPlaying,
		media.EventWaiting,
		media.EventPlaying,
		media.EventPause,
		media.EventSeeked,
		media.EventEnded,
	}, *got)
}

func TestPlayer_end_file_detaches(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	h := (*loaded)[0]
	got := record(h, media.EventEnded)

	p.dispatch(Event{Event: "end-file", Reason: "eof"})

	require.Equal(t, []media.Event{media.EventEnded}, *got)
	require.True(t, h.Detached())
	require.Nil(t, p.Current())
}

func TestPlayer_property_cache(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	h := (*loaded)[0]

	require.True(t, math.IsNaN(h.Duration()))
	ranges, err := h.Buffered()
	require.NoError(t, err, "no cache state yet means nothing buffered")
	require.Empty(t, ranges)
	require.Equal(t, media.HaveNothing, h.ReadyState())

	p.dispatch(change("duration", 120.0))
	p.dispatch(change("time-pos", 10.0))
	p.dispatch(change("speed", 1.25))
	p.dispatch(change("demuxer-cache-state", map[string]any{
		"seekable-ranges": []map[string]float64{{"start": 0, "end": 30}, {"start": 60, "end": 70}},
		"cache-end":       30,
	}))

	require.Equal(t, 120.0, h.Duration())
	require.Equal(t, 10.0, h.Position())
	require.Equal(t, 1.25, h.Rate())
	ranges, err = h.Buffered()
	require.NoError(t, err)
	require.Equal(t, []media.Range{{Start: 0, End: 30}, {Start: 60, End: 70}}, ranges)
	require.Equal(t, media.HaveEnoughData, h.ReadyState())

	p.dispatch(change("paused-for-cache", true))
	require.Equal(t, media.HaveCurrentData, h.ReadyState())

	p.dispatch(change("duration", nil))
	require.True(t, math.IsNaN(h.Duration()))
}

func TestPlayer_cache_state_before_file_loaded(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	f.props["demuxer-cache-state"] = map[string]any{
		"seekable-ranges": []map[string]float64{{"start": 0, "end": 12}},
	}
	p.dispatch(change("demuxer-cache-state", f.props["demuxer-cache-state"]))
	p.dispatch(Event{Event: "file-loaded"})

	ranges, err := (*loaded)[0].Buffered()
	require.NoError(t, err)
	require.Equal(t, []media.Range{{Start: 0, End: 12}}, ranges)
}

// A local file whose cache state arrives after the classifier settles
// is still progressive.
func TestPlayer_late_cache_state_classifies_progressive(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	p.dispatch(change("duration", 100.0))
	h := (*loaded)[0]

	sched := schedule.NewManual()
	c := buffering.New(h, sched, discardLogger(), buffering.Options{}, nil)
	c.Start()
	sched.Advance(time.Second)

	require.Equal(t, buffering.ShapeProgressive, c.Shape())
	c.Stop()
}

func TestHandle_commands(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	h := (*loaded)[0]

	require.NoError(t, h.Seek(42.5))
	require.NoError(t, h.SetRate(2))
	require.NoError(t, h.Pause())
	require.NoError(t, h.Play())

	cmds := f.sent()
	require.Equal(t, []any{"seek", 42.5, "absolute"}, cmds[len(cmds)-4])
	require.Equal(t, []any{"set_property", "speed", 2.0}, cmds[len(cmds)-3])
	require.Equal(t, []any{"set_property", "pause", true}, cmds[len(cmds)-2])
	require.Equal(t, []any{"set_property", "pause", false}, cmds[len(cmds)-1])
	require.Equal(t, 42.5, h.Position())
	require.Equal(t, 2.0, h.Rate())
}

func TestHandle_command_failure(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	h := (*loaded)[0]
	f.fail = &CommandError{Command: "seek", Reason: "error running command"}

	err := h.Seek(5)
	require.ErrorIs(t, err, ErrCommand)
	require.Equal(t, 0.0, h.Position())
}

func TestHandle_unsubscribe_inside_callback(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/movie.mkv"
	p.dispatch(Event{Event: "file-loaded"})
	h := (*loaded)[0]

	calls := 0
	var unsub func()
	unsub, err := h.Subscribe(media.EventSeeked, func() {
		calls++
		unsub()
	})
	require.NoError(t, err)

	p.dispatch(Event{Event: "playback-restart"})
	p.dispatch(Event{Event: "playback-restart"})
	require.Equal(t, 1, calls)
}

func TestPlayer_Run(t *testing.T) {
	p, f, loaded := newTestPlayer(t)
	f.props["path"] = "/media/already-playing.mkv"

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	f.events <- change("duration", 60.0)
	close(f.events)

	err := <-done
	require.ErrorIs(t, err, ErrClosed)

	observedCmds := 0
	for _, cmd := range f.sent() {
		if cmd[0] == "observe_property" {
			observedCmds++
		}
	}
	require.Equal(t, len(observed), observedCmds)
	require.Len(t, *loaded, 1)
	require.Equal(t, 60.0, (*loaded)[0].Duration())
	require.True(t, (*loaded)[0].Detached(), "closed connection unloads the file")
}

func TestPlayer_Run_observe_failure(t *testing.T) {
	p, f, _ := newTestPlayer(t)
	f.fail = errors.New("broken pipe")

	err := p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "observe time-pos")
}
