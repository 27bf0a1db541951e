package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/logger"
)

// SessionRegistry owns the open conversation sessions of the process.
// Sessions live in memory only and are closed explicitly, by idle expiry,
// or when the registry is closed.
type SessionRegistry struct {
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.Session
	closed   bool
}

// SessionOption configures a SessionRegistry.
type SessionOption func(*SessionRegistry)

// WithClock replaces the registry's clock.
func WithClock(now func() time.Time) SessionOption {
	return func(r *SessionRegistry) {
		r.now = now
	}
}

// NewSessionRegistry creates a registry. An idle timeout of zero disables expiry.
func NewSessionRegistry(cfg domain.SessionSettings, opts ...SessionOption) *SessionRegistry {
	r := &SessionRegistry{
		idleTimeout: cfg.IdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*domain.Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates an active session for the patient.
func (r *SessionRegistry) Open(patient domain.Patient) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: registry closed", domain.ErrSessionNotFound)
	}

	now := r.now()
	s := &domain.Session{
		SessionID:    uuid.New().String(),
		PatientName:  patient.Name,
		Patient:      patient,
		State:        domain.SessionActive,
		CreatedAt:    now,
		LastActivity: now,
	}
	r.sessions[s.SessionID] = s
	logger.Debug("Session %s opened for %s", s.SessionID, patient.Name)

	return snapshot(s), nil
}

// Get returns a snapshot of an open session.
func (r *SessionRegistry) Get(id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return snapshot(s), nil
}

// AppendTurn records a turn and refreshes the session's activity time.
func (r *SessionRegistry) AppendTurn(id string, turn domain.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = r.now()
	}
	s.Turns = append(s.Turns, turn)
	s.LastActivity = r.now()
	return nil
}

// List returns snapshots of the open sessions, oldest first.
func (r *SessionRegistry) List() []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if r.expired(s) {
			continue
		}
		out = append(out, *snapshot(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// End closes a session.
func (r *SessionRegistry) End(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	r.remove(s)
	return nil
}

// Sweep closes every session idle for longer than the idle timeout and
// returns how many were closed.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if r.expired(s) {
			r.remove(s)
			n++
		}
	}
	if n > 0 {
		logger.Debug("Session sweep closed %d idle sessions", n)
	}
	return n
}

// Len returns the number of sessions held, including idle ones not yet swept.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every session. Open fails afterwards.
func (r *SessionRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		r.remove(s)
	}
	r.closed = true
	return nil
}

// lookup returns an open session, closing it first if it has expired.
// Caller holds r.mu.
func (r *SessionRegistry) lookup(id string) (*domain.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if r.expired(s) {
		r.remove(s)
		return nil, fmt.Errorf("%w: %s expired", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

func (r *SessionRegistry) expired(s *domain.Session) bool {
	return r.idleTimeout > 0 && r.now().Sub(s.LastActivity) > r.idleTimeout
}

func (r *SessionRegistry) remove(s *domain.Session) {
	s.State = domain.SessionClosed
	delete(r.sessions, s.SessionID)
}

func snapshot(s *domain.Session) *domain.Session {
	c := *s
	c.Turns = append([]domain.Turn(nil), s.Turns...)
	c.Patient.Medications = append([]string(nil), s.Patient.Medications...)
	return &c
}
