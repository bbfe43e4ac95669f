package incident

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("incident: session not found")
	// ErrStaleSession is returned when a session changed between read and write.
	ErrStaleSession = errors.New("incident: session changed during update")
)

// SessionStore keeps sessions in process memory. Stored values are never
// mutated in place: every write swaps in a fresh copy.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	gatesMu sync.Mutex
	gates   map[string]*sessionGate

	now func() time.Time
}

type sessionGate struct {
	ch   chan struct{}
	refs int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		gates:    make(map[string]*sessionGate),
		now:      time.Now,
	}
}

// GetOrCreate returns a copy of the session for id, creating an empty one if needed.
func (s *SessionStore) GetOrCreate(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		now := s.now()
		sess = &Session{ID: id, CreatedAt: now, UpdatedAt: now}
		s.sessions[id] = sess
	}
	return sess.clone()
}

func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

// Update applies mutate to a copy of the session and stores the copy if
// mutate succeeds. The stored session is untouched on error.
func (s *SessionStore) Update(id string, mutate func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	next := cur.clone()
	if err := mutate(&next); err != nil {
		return cur.clone(), err
	}
	next.ID = id
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now()
	s.sessions[id] = &next
	return next.clone(), nil
}

// Delete removes the session and reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Lock serializes work on one session id. It blocks only callers holding the
// same id and returns ctx.Err() if ctx ends first.
func (s *SessionStore) Lock(ctx context.Context, id string) (func(), error) {
	s.gatesMu.Lock()
	g, ok := s.gates[id]
	if !ok {
		g = &sessionGate{ch: make(chan struct{}, 1)}
		s.gates[id] = g
	}
	g.refs++
	s.gatesMu.Unlock()

	select {
	case g.ch <- struct{}{}:
	case <-ctx.Done():
		s.releaseGate(id, g)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-g.ch
			s.releaseGate(id, g)
		})
	}, nil
}

func (s *SessionStore) releaseGate(id string, g *sessionGate) {
	s.gatesMu.Lock()
	defer s.gatesMu.Unlock()
	g.refs--
	if g.refs == 0 {
		delete(s.gates, id)
	}
}

// expectVersion guards a mutator against writes that raced past the gate.
func expectVersion(version int64, mutate func(*Session) error) func(*Session) error {
	return func(sess *Session) error {
		if sess.Version != version {
			return ErrStaleSession
		}
		return mutate(sess)
	}
}
