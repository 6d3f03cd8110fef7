package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

func newTestConnector(p wallet.Provider) *Connector {
	return NewConnector(wallet.Static(wallet.Available(p, wallet.KindKey)), testChain(), logger.NewNop())
}

func TestConnector_Initialize(t *testing.T) {
	t.Run("already on the required chain", func(t *testing.T) {
		p := newFakeProvider()
		s, err := newTestConnector(p).Initialize(context.Background())
		require.NoError(t, err)

		assert.True(t, s.IsConnected())
		assert.Equal(t, senderAddr, s.Address())
		assert.Equal(t, testChain().ChainID, s.ChainID())
		assert.Zero(t, p.count(wallet.MethodSwitchChain))
	})

	t.Run("wrong chain switches exactly once", func(t *testing.T) {
		p := newFakeProvider()
		p.chainID = 1
		s, err := newTestConnector(p).Initialize(context.Background())
		require.NoError(t, err)

		assert.True(t, s.IsConnected())
		assert.Equal(t, 1, p.count(wallet.MethodSwitchChain))
		assert.Zero(t, p.count(wallet.MethodAddChain))
	})

	t.Run("unknown chain is added exactly once", func(t *testing.T) {
		p := newFakeProvider()
		p.chainID = 1
		p.switchErrs = []error{&wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "unrecognized chain"}}
		_, err := newTestConnector(p).Initialize(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, p.count(wallet.MethodSwitchChain))
		assert.Equal(t, 1, p.count(wallet.MethodAddChain))
	})

	t.Run("failed add is not retried", func(t *testing.T) {
		p := newFakeProvider()
		p.chainID = 1
		p.switchErrs = []error{&wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "unrecognized chain"}}
		p.addErr = &wallet.ProviderError{Code: wallet.CodeInternalError, Message: "boom"}
		_, err := newTestConnector(p).Initialize(context.Background())

		require.Error(t, err)
		assert.Equal(t, apperrors.CodeChainSwitch, apperrors.GetErrorCode(err))
		assert.Equal(t, 1, p.count(wallet.MethodSwitchChain))
		assert.Equal(t, 1, p.count(wallet.MethodAddChain))
	})

	t.Run("user rejects connection", func(t *testing.T) {
		p := newFakeProvider()
		p.connectErr = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}
		_, err := newTestConnector(p).Initialize(context.Background())

		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUserRejected, apperrors.GetErrorCode(err))
		assert.Equal(t, "connection cancelled by user", err.Error())
	})

	t.Run("no provider", func(t *testing.T) {
		c := NewConnector(wallet.Static(wallet.Unavailable("no signer endpoint configured")), testChain(), logger.NewNop())
		_, err := c.Initialize(context.Background())

		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrNoProvider))
	})
}

func TestConnector_AutoConnect(t *testing.T) {
	t.Run("adopts authorized account", func(t *testing.T) {
		p := newFakeProvider()
		s, err := newTestConnector(p).AutoConnect(context.Background())
		require.NoError(t, err)
		require.NotNil(t, s)

		assert.Equal(t, senderAddr, s.Address())
		assert.Zero(t, p.count(wallet.MethodRequestAccounts))
	})

	t.Run("nothing authorized", func(t *testing.T) {
		p := newFakeProvider()
		p.accounts = nil
		s, err := newTestConnector(p).AutoConnect(context.Background())
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("wallet on another chain is left alone", func(t *testing.T) {
		p := newFakeProvider()
		p.chainID = 1
		s, err := newTestConnector(p).AutoConnect(context.Background())
		require.NoError(t, err)
		assert.Nil(t, s)
		assert.Zero(t, p.count(wallet.MethodSwitchChain))
	})
}

func TestConnector_ProviderEventsInvalidateSession(t *testing.T) {
	tests := []struct {
		name  string
		event wallet.Event
		alive bool
	}{
		{"same account", wallet.Event{Name: wallet.EventAccountsChanged, Accounts: []string{senderAddr.Hex()}}, true},
		{"account switched", wallet.Event{Name: wallet.EventAccountsChanged, Accounts: []string{recipient}}, false},
		{"accounts revoked", wallet.Event{Name: wallet.EventAccountsChanged}, false},
		{"same chain", wallet.Event{Name: wallet.EventChainChanged, ChainID: "0xa869"}, true},
		{"chain changed", wallet.Event{Name: wallet.EventChainChanged, ChainID: "0x1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &eventProvider{fakeProvider: newFakeProvider()}
			s, err := newTestConnector(p).Initialize(context.Background())
			require.NoError(t, err)

			p.emit(tt.event)
			assert.Equal(t, tt.alive, s.IsConnected())
		})
	}
}

func TestConnector_Disconnect(t *testing.T) {
	p := &eventProvider{fakeProvider: newFakeProvider()}
	c := newTestConnector(p)
	s, err := c.Initialize(context.Background())
	require.NoError(t, err)
	require.Len(t, p.listeners, 1)

	c.Disconnect(s)
	assert.False(t, s.IsConnected())
	assert.Empty(t, p.listeners)

	c.Disconnect(s)
	c.Disconnect(nil)
}
