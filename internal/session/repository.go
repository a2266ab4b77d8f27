package session

import (
	"errors"
	"sync"
	"time"
)

// Repository is the concurrency-safe contract for session records. The
// event loop writes; HTTP handlers read from their own goroutines.
type Repository interface {
	// Register adds a new session. Registering an existing id fails with
	// ErrSessionExists.
	Register(s Session) error

	// Update applies fn to a live session. Ended sessions are immutable.
	Update(id ID, fn func(*Session)) error

	// Get returns a copy of the session.
	Get(id ID) (Session, bool)

	// List returns copies of all sessions, oldest first.
	List() []Session

	// End marks a session ended at the given time. Ending an ended or
	// unknown session is a no-op.
	End(id ID, at time.Time) error

	// ActiveSessionCount returns the number of sessions that are not
	// ended. Used for metrics.
	ActiveSessionCount() int
}

var (
	ErrSessionExists   = errors.New("session already registered")
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionEnded is returned when mutating a session that has ended.
	ErrSessionEnded = errors.New("session has ended")
)

// InMemoryRepository is a concurrency-safe Repository backed by a Store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Register implements Repository.Register.
func (r *InMemoryRepository) Register(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID); exists {
		return ErrSessionExists
	}
	r.store.SetSession(&s)
	return nil
}

// Update implements Repository.Update.
func (r *InMemoryRepository) Update(id ID, fn func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return ErrSessionNotFound
	}
	if s.Ended {
		return ErrSessionEnded
	}

	// Mutate a copy so fn cannot flip identity or the ended flag.
	next := *s
	fn(&next)
	next.ID, next.Ended, next.EndedAt = s.ID, s.Ended, s.EndedAt
	r.store.SetSession(&next)
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id ID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListSessionIDs()
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.GetSession(id); ok {
			out = append(out, *s)
		}
	}
	return out
}

// End implements Repository.End.
func (r *InMemoryRepository) End(id ID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok || s.Ended {
		return nil
	}

	ended := *s
	ended.Ended = true
	at = at.UTC()
	ended.EndedAt = &at
	r.store.SetSession(&ended)
	return nil
}

// ActiveSessionCount implements Repository.ActiveSessionCount.
func (r *InMemoryRepository) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListSessionIDs() {
		if s, ok := r.store.GetSession(id); ok && !s.Ended {
			n++
		}
	}
	return n
}
