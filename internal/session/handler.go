package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Runner executes fn on the event loop and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Handler exposes the session control API using go-chi. Reads come from
// the repository; mutations hop onto the loop through Runner.
type Handler struct {
	mgr  *Manager
	repo Repository
	run  Runner
	log  *slog.Logger
}

// NewHandler returns a Handler for mgr. repo must be the repository mgr records into.
func NewHandler(mgr *Manager, repo Repository, run Runner, log *slog.Logger) *Handler {
	return &Handler{mgr: mgr, repo: repo, run: run, log: log}
}

// Routes mounts the handler under the current router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/sessions", h.ListSessions)
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/buffer", h.ForceBuffer)
		r.Post("/stop", h.StopSession)
	})
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.repo.List())
}

// GetSession handles GET /sessions/{session_id}. A session that has not
// ended also carries the live controller view; if the loop cannot be
// reached the stored record is returned alone.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s, ok := h.repo.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	d := Detail{Session: s}
	if !s.Ended {
		live := make(chan *Live, 1)
		err := h.run.Do(r.Context(), func() {
			if st, ok := h.mgr.Status(id); ok {
				live <- liveFrom(st)
			}
		})
		if err != nil {
			h.log.Warn("get session: event loop unavailable", slog.String("error", err.Error()))
		}
		select {
		case d.Live = <-live:
		default:
		}
	}
	writeJSON(w, http.StatusOK, d)
}

// ForceBuffer handles POST /sessions/{session_id}/buffer.
func (h *Handler) ForceBuffer(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var err error
	if runErr := h.run.Do(r.Context(), func() { err = h.mgr.ForceBuffer(id) }); runErr != nil {
		h.log.Error("force buffer: event loop unavailable", slog.String("error", runErr.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch {
	case err == nil:
		h.log.Info("buffering requested", slog.String("session_id", string(id)))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "buffering"})
	case errors.Is(err, ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSessionEnded), errors.Is(err, ErrDurationUnknown):
		h.log.Info("buffering request rejected",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.log.Error("force buffer failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// StopSession handles POST /sessions/{session_id}/stop. Stopping an ended
// session succeeds.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var err error
	if runErr := h.run.Do(r.Context(), func() { err = h.mgr.Stop(id) }); runErr != nil {
		h.log.Error("stop session: event loop unavailable", slog.String("error", runErr.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch {
	case err == nil, errors.Is(err, ErrSessionEnded):
		h.log.Info("session stopped", slog.String("session_id", string(id)))
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	default:
		h.log.Error("stop session failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
