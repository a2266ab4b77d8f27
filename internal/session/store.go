package session

// Store is the persistence abstraction for session records. The Repository
// serializes access; implementations need no locking of their own.
type Store interface {
	GetSession(id ID) (*Session, bool)
	SetSession(s *Session)
	ListSessionIDs() []ID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	sessions map[ID]*Session
	order    []ID
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[ID]*Session),
	}
}

// GetSession implements Store.GetSession.
func (s *InMemoryStore) GetSession(id ID) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// SetSession implements Store.SetSession.
func (s *InMemoryStore) SetSession(sess *Session) {
	if _, ok := s.sessions[sess.ID]; !ok {
		s.order = append(s.order, sess.ID)
	}
	s.sessions[sess.ID] = sess
}

// ListSessionIDs returns ids in insertion order.
func (s *InMemoryStore) ListSessionIDs() []ID {
	ids := make([]ID, len(s.order))
	copy(ids, s.order)
	return ids
}
