package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryzan/ryzan_service/pkg/logger"
)

func newTestSessions(t *testing.T, ttl time.Duration) (*Sessions, *int) {
	t.Helper()
	created := 0
	factory := func(userID uuid.UUID) *Facade {
		created++
		log := logger.NewNop()
		backend := newFakeBackend()
		return NewFacade(userID, newTestConnector(newFakeProvider()), NewReader(backend, testChain(), log),
			newTestEngine(backend, nil), nil, log)
	}
	return NewSessions(factory, ttl, logger.NewNop()), &created
}

func TestSessions_OneFacadePerUser(t *testing.T) {
	sessions, created := newTestSessions(t, time.Minute)
	alice, bob := uuid.New(), uuid.New()

	a1 := sessions.Get(alice)
	a2 := sessions.Get(alice)
	b := sessions.Get(bob)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, *created)
	assert.Equal(t, 2, sessions.Len())

	_, ok := sessions.Lookup(alice)
	assert.True(t, ok)
	_, ok = sessions.Lookup(uuid.New())
	assert.False(t, ok)
}

func TestSessions_DropDisconnects(t *testing.T) {
	sessions, _ := newTestSessions(t, time.Minute)
	user := uuid.New()

	f := sessions.Get(user)
	require.True(t, f.Connect(context.Background()).Success)
	s := f.Session()

	sessions.Drop(user)
	assert.False(t, s.IsConnected())
	_, ok := sessions.Lookup(user)
	assert.False(t, ok)
}

func TestSessions_ShutdownDisconnectsAll(t *testing.T) {
	sessions, _ := newTestSessions(t, time.Minute)
	var live []*WalletSession
	for i := 0; i < 3; i++ {
		f := sessions.Get(uuid.New())
		require.True(t, f.Connect(context.Background()).Success)
		live = append(live, f.Session())
	}

	require.NoError(t, sessions.Shutdown(context.Background()))
	assert.Zero(t, sessions.Len())
	for _, s := range live {
		assert.False(t, s.IsConnected())
	}
}

func markSending(f *Facade, sending bool) {
	f.mu.Lock()
	f.state.IsSending = sending
	f.mu.Unlock()
}

func TestSessions_BusyFacadeSurvivesEviction(t *testing.T) {
	sessions, created := newTestSessions(t, time.Minute)
	user := uuid.New()

	f := sessions.Get(user)
	markSending(f, true)
	sessions.items.Delete(user.String())

	got, ok := sessions.Lookup(user)
	require.True(t, ok)
	assert.Same(t, f, got)
	assert.Equal(t, 1, *created)
}

func TestSessions_LateEvictionKeepsNewerFacade(t *testing.T) {
	sessions, created := newTestSessions(t, time.Minute)
	user := uuid.New()
	key := user.String()

	old := sessions.Get(user)
	sessions.items.Delete(key)
	newer := sessions.Get(user)
	require.NotSame(t, old, newer)

	// the janitor reports the old facade only after Get already replaced it
	markSending(old, true)
	sessions.evicted(key, old)

	assert.Same(t, newer, sessions.Get(user))
	assert.Equal(t, 2, *created)
	assert.Equal(t, 1, sessions.Len())
}
