package transfer

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
)

// WalletSession is one authorized connection to a signing provider. It is
// created by the Connector and handed explicitly to the Reader and Engine.
// Once closed it stays closed; reconnecting yields a new session.
type WalletSession struct {
	provider wallet.Provider
	kind     string
	address  common.Address
	chainID  uint64

	mu          sync.RWMutex
	connected   bool
	unsubscribe func()
}

func newWalletSession(p wallet.Provider, kind string, address common.Address, chainID uint64) *WalletSession {
	return &WalletSession{
		provider:  p,
		kind:      kind,
		address:   address,
		chainID:   chainID,
		connected: true,
	}
}

func (s *WalletSession) Provider() wallet.Provider { return s.provider }
func (s *WalletSession) Kind() string               { return s.kind }
func (s *WalletSession) Address() common.Address    { return s.address }
func (s *WalletSession) ChainID() uint64            { return s.chainID }

// IsConnected reports whether the session can still be used.
func (s *WalletSession) IsConnected() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *WalletSession) setUnsubscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribe = fn
}

// Close marks the session disconnected and stops listening to provider events.
// It is safe to call more than once.
func (s *WalletSession) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.connected = false
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
