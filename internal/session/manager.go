package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mpv-fullbuffer/internal/buffering"
	"mpv-fullbuffer/internal/media"
	"mpv-fullbuffer/internal/platform/metrics"
	"mpv-fullbuffer/internal/schedule"
)

var (
	// ErrSessionBusy is returned by ForceBuffer while an episode is in flight.
	ErrSessionBusy = errors.New("session is already buffering")
	// ErrDurationUnknown is returned by ForceBuffer for media without a
	// finite duration, such as live streams.
	ErrDurationUnknown = errors.New("media duration unknown")
)

type entry struct {
	id     ID
	handle media.Handle
	ctrl   *buffering.Controller
}

// Manager owns one buffering controller per discovered media handle. It is
// not safe for concurrent use: call it on the event loop.
type Manager struct {
	repo    Repository
	sched   schedule.Scheduler
	log     *slog.Logger
	opts    buffering.Options
	metrics *metrics.Metrics

	sessions map[ID]*entry
	byHandle map[media.Handle]ID
	active   ID

	newID func() ID
	now   func() time.Time
}

// NewManager returns a Manager recording into repo. m may be nil.
func NewManager(repo Repository, sched schedule.Scheduler, log *slog.Logger, opts buffering.Options, m *metrics.Metrics) *Manager {
	return &Manager{
		repo:     repo,
		sched:    sched,
		log:      log,
		opts:     opts,
		metrics:  m,
		sessions: make(map[ID]*entry),
		byHandle: make(map[media.Handle]ID),
		newID:    func() ID { return ID(uuid.NewString()) },
		now:      sched.Now,
	}
}

// Attach starts a controller for h and returns its session id. A handle
// that is already attached keeps its session. Attaching a new handle stops
// the previously active session: a new source is a new navigation.
func (m *Manager) Attach(h media.Handle) ID {
	if id, ok := m.byHandle[h]; ok {
		return id
	}
	if m.active != "" {
		m.end(m.active, "replaced by new source")
	}

	id := m.newID()
	src := h.Source()
	if err := m.repo.Register(Session{
		ID:        id,
		Source:    src,
		State:     buffering.StateIdle.String(),
		Shape:     buffering.ShapeUnknown.String(),
		StartedAt: m.now().UTC(),
	}); err != nil {
		m.log.Error("register session", slog.String("session_id", string(id)), slog.String("error", err.Error()))
		return ""
	}

	log := m.log.With(slog.String("session_id", string(id)))
	rec := &recorder{id: id, repo: m.repo, metrics: m.metrics, log: log}
	e := &entry{id: id, handle: h, ctrl: buffering.New(h, m.sched, log, m.opts, rec)}
	m.sessions[id] = e
	m.byHandle[h] = id
	m.active = id

	m.log.Info("session attached", slog.String("session_id", string(id)), slog.String("source", src))
	e.ctrl.Start()
	if e.ctrl.State() == buffering.StateIdle {
		m.end(id, "controller failed to start")
	}
	return id
}

// Detach stops the session attached to h, if any.
func (m *Manager) Detach(h media.Handle) {
	if id, ok := m.byHandle[h]; ok {
		m.end(id, "media unloaded")
	}
}

// ForceBuffer starts a manual episode on the session.
func (m *Manager) ForceBuffer(id ID) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if e.ctrl.ForceBuffer() {
		return nil
	}
	if e.ctrl.State() == buffering.StateBuffering {
		return ErrSessionBusy
	}
	return ErrDurationUnknown
}

// Stop ends the session, restoring playback if an episode is in flight.
func (m *Manager) Stop(id ID) error {
	if _, err := m.lookup(id); err != nil {
		return err
	}
	m.end(id, "stopped by request")
	return nil
}

// StopAll ends every live session.
func (m *Manager) StopAll() {
	for id := range m.sessions {
		m.end(id, "shutting down")
	}
}

// Status returns the live controller status of a session.
func (m *Manager) Status(id ID) (buffering.Status, bool) {
	e, ok := m.sessions[id]
	if !ok {
		return buffering.Status{}, false
	}
	return e.ctrl.Status(), true
}

func (m *Manager) lookup(id ID) (*entry, error) {
	if e, ok := m.sessions[id]; ok {
		return e, nil
	}
	if _, ok := m.repo.Get(id); ok {
		return nil, ErrSessionEnded
	}
	return nil, ErrSessionNotFound
}

func (m *Manager) end(id ID, reason string) {
	e, ok := m.sessions[id]
	if !ok {
		return
	}
	e.ctrl.Stop()
	delete(m.sessions, id)
	delete(m.byHandle, e.handle)
	if m.active == id {
		m.active = ""
	}
	if err := m.repo.End(id, m.now()); err != nil {
		m.log.Error("end session", slog.String("session_id", string(id)), slog.String("error", err.Error()))
	}
	m.log.Info("session ended", slog.String("session_id", string(id)), slog.String("reason", reason))
}
