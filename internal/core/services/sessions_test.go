package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRegistry(idle time.Duration) (*SessionRegistry, *fakeClock) {
	clock := newFakeClock()
	return NewSessionRegistry(domain.SessionSettings{IdleTimeout: idle}, WithClock(clock.Now)), clock
}

func TestSessionRegistry_OpenAndGet(t *testing.T) {
	r, clock := newTestRegistry(time.Hour)

	s, err := r.Open(*testPatient())
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, domain.SessionActive, s.State)
	assert.Equal(t, "John Smith", s.PatientName)
	assert.Equal(t, clock.Now(), s.CreatedAt)

	got, err := r.Get(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, got.SessionID)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRegistry_AppendTurnUpdatesActivity(t *testing.T) {
	r, clock := newTestRegistry(time.Hour)
	s, err := r.Open(*testPatient())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	require.NoError(t, r.AppendTurn(s.SessionID, domain.Turn{Query: "hi", Response: "hello", AgentUsed: domain.RouteDirect}))

	got, err := r.Get(s.SessionID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, clock.Now(), got.LastActivity)
	assert.Equal(t, clock.Now(), got.Turns[0].Timestamp)

	assert.ErrorIs(t, r.AppendTurn("missing", domain.Turn{}), domain.ErrSessionNotFound)
}

func TestSessionRegistry_SnapshotsAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(0)
	s, err := r.Open(*testPatient())
	require.NoError(t, err)
	require.NoError(t, r.AppendTurn(s.SessionID, domain.Turn{Query: "one"}))

	got, err := r.Get(s.SessionID)
	require.NoError(t, err)
	got.Turns[0].Query = "changed"
	got.Patient.Medications[0] = "changed"

	again, err := r.Get(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "one", again.Turns[0].Query)
	assert.Equal(t, "Lisinopril 10mg daily", again.Patient.Medications[0])
}

func TestSessionRegistry_IdleExpiry(t *testing.T) {
	r, clock := newTestRegistry(30 * time.Minute)
	idle, err := r.Open(*testPatient())
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	active, err := r.Open(*testPatient())
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	assert.Len(t, r.List(), 1)

	_, err = r.Get(idle.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = r.Get(active.SessionID)
	assert.NoError(t, err)
}

func TestSessionRegistry_Sweep(t *testing.T) {
	r, clock := newTestRegistry(30 * time.Minute)
	for i := 0; i < 3; i++ {
		_, err := r.Open(*testPatient())
		require.NoError(t, err)
	}
	clock.Advance(10 * time.Minute)
	kept, err := r.Open(*testPatient())
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	assert.Equal(t, 3, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.Zero(t, r.Sweep())

	_, err = r.Get(kept.SessionID)
	assert.NoError(t, err)
}

func TestSessionRegistry_ZeroTimeoutNeverExpires(t *testing.T) {
	r, clock := newTestRegistry(0)
	s, err := r.Open(*testPatient())
	require.NoError(t, err)

	clock.Advance(1000 * time.Hour)
	assert.Zero(t, r.Sweep())
	_, err = r.Get(s.SessionID)
	assert.NoError(t, err)
}

func TestSessionRegistry_End(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s, err := r.Open(*testPatient())
	require.NoError(t, err)

	require.NoError(t, r.End(s.SessionID))
	_, err = r.Get(s.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, r.End(s.SessionID), domain.ErrSessionNotFound)
}

func TestSessionRegistry_ListOrder(t *testing.T) {
	r, clock := newTestRegistry(time.Hour)
	first, err := r.Open(domain.Patient{Name: "First"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := r.Open(domain.Patient{Name: "Second"})
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.SessionID, list[0].SessionID)
	assert.Equal(t, second.SessionID, list[1].SessionID)
}

func TestSessionRegistry_Close(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	_, err := r.Open(*testPatient())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Zero(t, r.Len())

	_, err = r.Open(*testPatient())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
