package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/metrics"
)

// DefaultSessionIdleTTL is how long an untouched facade is kept.
const DefaultSessionIdleTTL = 30 * time.Minute

// FacadeFactory builds the facade for a user on first use.
type FacadeFactory func(userID uuid.UUID) *Facade

// Sessions keeps one Facade per user. Idle facades are evicted and their
// wallet sessions disconnected.
type Sessions struct {
	mu      sync.Mutex
	items   *cache.Cache
	factory FacadeFactory
	ttl     time.Duration
	logger  *logger.Logger

	// forced holds keys removed explicitly; those skip the busy check.
	forced sync.Map
}

func NewSessions(factory FacadeFactory, idleTTL time.Duration, logger *logger.Logger) *Sessions {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	s := &Sessions{
		items:   cache.New(idleTTL, idleTTL/2),
		factory: factory,
		ttl:     idleTTL,
		logger:  logger,
	}
	s.items.OnEvicted(s.evicted)
	return s
}

// Get returns the user's facade, creating it on demand, and refreshes its
// idle deadline.
func (s *Sessions) Get(userID uuid.UUID) *Facade {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID.String()
	if v, ok := s.items.Get(key); ok {
		f := v.(*Facade)
		s.items.Set(key, f, s.ttl)
		return f
	}

	f := s.factory(userID)
	s.items.Set(key, f, s.ttl)
	metrics.SetActiveSessions(s.items.ItemCount())
	s.logger.Debug("Transfer session created", "user_id", key)
	return f
}

// Lookup returns the user's facade without creating one.
func (s *Sessions) Lookup(userID uuid.UUID) (*Facade, bool) {
	v, ok := s.items.Get(userID.String())
	if !ok {
		return nil, false
	}
	return v.(*Facade), true
}

// Drop disconnects and forgets the user's facade, e.g. on sign-out.
func (s *Sessions) Drop(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(userID.String())
}

func (s *Sessions) Len() int {
	return s.items.ItemCount()
}

// Shutdown disconnects every facade.
func (s *Sessions) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.items.Items() {
		s.remove(key)
	}
	return nil
}

func (s *Sessions) remove(key string) {
	s.forced.Store(key, struct{}{})
	s.items.Delete(key)
	s.forced.Delete(key)
}

func (s *Sessions) evicted(key string, v interface{}) {
	f, ok := v.(*Facade)
	if !ok {
		return
	}
	// forced removals already run under s.mu
	if _, forced := s.forced.Load(key); !forced {
		s.mu.Lock()
		defer s.mu.Unlock()
		if f.Busy() {
			// An in-flight transfer keeps its facade alive unless Get has
			// already replaced it.
			if err := s.items.Add(key, f, s.ttl); err != nil {
				s.logger.Debug("Busy transfer session superseded", "user_id", key)
			}
			return
		}
	}
	f.Disconnect()
	metrics.SetActiveSessions(s.items.ItemCount())
	s.logger.Debug("Transfer session released", "user_id", key)
}
