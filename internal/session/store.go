package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Store is the in-memory session registry. Sessions are never persisted;
// they expire after the configured idle TTL or on explicit delete.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	logger   infra.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewStore creates a session store. A non-positive ttl disables expiry.
func NewStore(ttl time.Duration, logger infra.Logger) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// Create starts a new session seeded with the uploaded original raster.
func (st *Store) Create(original domain.Raster) *Session {
	s := newSession(original)
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get looks up a session by its string ID and refreshes its idle timer.
func (st *Store) Get(id string) (*Session, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	st.mu.Lock()
	s, ok := st.sessions[sid]
	st.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	s.touch()
	return s, nil
}

// Delete removes a session and all of its state.
func (st *Store) Delete(id string) error {
	sid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[sid]; !ok {
		return fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	delete(st.sessions, sid)
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// StartSweeper launches the background expiry loop. It is a no-op when the
// TTL is disabled.
func (st *Store) StartSweeper(interval time.Duration) {
	if st.ttl <= 0 || st.stop != nil {
		return
	}
	st.stop = make(chan struct{})
	st.done = make(chan struct{})
	go func() {
		defer close(st.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.sweep()
			case <-st.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper and waits for it to exit.
func (st *Store) Stop() {
	if st.stop == nil {
		return
	}
	close(st.stop)
	<-st.done
	st.stop = nil
	st.done = nil
}

func (st *Store) sweep() {
	cutoff := time.Now().Add(-st.ttl)
	var expired []uuid.UUID
	st.mu.Lock()
	for id, s := range st.sessions {
		if s.lastTouched().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	if len(expired) > 0 {
		st.logger.Debug().Int("count", len(expired)).Msg("session: expired idle sessions")
	}
}
