package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

// Connector establishes wallet sessions on the required chain.
type Connector struct {
	detector wallet.Detector
	chain    entities.ChainConfig
	logger   *logger.Logger
}

func NewConnector(detector wallet.Detector, chain entities.ChainConfig, logger *logger.Logger) *Connector {
	return &Connector{detector: detector, chain: chain, logger: logger}
}

// Detect runs the provider capability check.
func (c *Connector) Detect(ctx context.Context) wallet.Detection {
	return c.detector.Detect(ctx)
}

// Initialize prompts for account access, moves the provider to the required
// chain if needed and returns a live session.
func (c *Connector) Initialize(ctx context.Context) (*WalletSession, error) {
	det := c.Detect(ctx)
	if !det.Available {
		c.logger.Warn("No wallet provider", "reason", det.Reason)
		return nil, apperrors.NoProviderError(det.Reason)
	}

	accounts, err := wallet.RequestAccounts(ctx, det.Provider)
	if err != nil {
		if wallet.IsUserRejection(err) {
			return nil, apperrors.UserRejectedError("connection")
		}
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, apperrors.NoProviderError("provider returned no accounts")
	}

	chainID, err := wallet.ChainID(ctx, det.Provider)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if chainID != c.chain.ChainID {
		c.logger.Info("Switching wallet network", "from", chainID, "to", c.chain.ChainID)
		if err := c.SwitchChain(ctx, det.Provider); err != nil {
			return nil, err
		}
	}

	s := newWalletSession(det.Provider, det.Kind, accounts[0], c.chain.ChainID)
	c.watch(s)
	c.logger.Info("Wallet connected", "address", s.Address().Hex(), "chain_id", s.ChainID(), "provider", det.Kind)
	return s, nil
}

// SwitchChain asks the provider to move to the required chain. An unknown
// chain is added once; there is no second switch attempt.
func (c *Connector) SwitchChain(ctx context.Context, p wallet.Provider) error {
	_, err := p.Request(ctx, wallet.MethodSwitchChain, wallet.SwitchChainParams{ChainID: c.chain.ChainIDHex()})
	if err == nil {
		return nil
	}
	if wallet.IsUserRejection(err) {
		return apperrors.UserRejectedError("network switch")
	}
	if wallet.ErrorCode(err) != wallet.CodeUnrecognizedChain {
		return apperrors.ChainSwitchError(c.chain.ChainID, err)
	}

	c.logger.Info("Adding network to wallet", "chain_id", c.chain.ChainID, "name", c.chain.Name)
	if _, err := p.Request(ctx, wallet.MethodAddChain, c.chain.AddChainParams()); err != nil {
		if wallet.IsUserRejection(err) {
			return apperrors.UserRejectedError("network switch")
		}
		return apperrors.ChainSwitchError(c.chain.ChainID, err)
	}
	return nil
}

// AutoConnect adopts an already authorized account without prompting. It
// returns nil, nil when there is nothing to adopt.
func (c *Connector) AutoConnect(ctx context.Context) (*WalletSession, error) {
	det := c.Detect(ctx)
	if !det.Available {
		return nil, nil
	}

	accounts, err := wallet.Accounts(ctx, det.Provider)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	chainID, err := wallet.ChainID(ctx, det.Provider)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if chainID != c.chain.ChainID {
		c.logger.Debug("Auto-connect skipped, wallet on another network", "chain_id", chainID)
		return nil, nil
	}

	s := newWalletSession(det.Provider, det.Kind, accounts[0], chainID)
	c.watch(s)
	return s, nil
}

// Disconnect tears the session down.
func (c *Connector) Disconnect(s *WalletSession) {
	if s == nil {
		return
	}
	s.Close()
	c.logger.Info("Wallet disconnected", "address", s.Address().Hex())
}

// HandleAccountsChanged invalidates the session unless its account is still
// the provider's active one.
func (c *Connector) HandleAccountsChanged(s *WalletSession, accounts []string) {
	if len(accounts) > 0 && strings.EqualFold(accounts[0], s.Address().Hex()) {
		return
	}
	c.logger.Info("Wallet account changed, session closed", "address", s.Address().Hex())
	s.Close()
}

// HandleChainChanged invalidates the session if the provider left the required chain.
func (c *Connector) HandleChainChanged(s *WalletSession, chainHex string) {
	chainID, err := hexutil.DecodeUint64(chainHex)
	if err == nil && chainID == c.chain.ChainID {
		return
	}
	c.logger.Info("Wallet network changed, session closed", "chain", chainHex)
	s.Close()
}

func (c *Connector) watch(s *WalletSession) {
	src, ok := s.Provider().(wallet.EventSource)
	if !ok {
		return
	}
	s.setUnsubscribe(src.Subscribe(func(ev wallet.Event) {
		switch ev.Name {
		case wallet.EventAccountsChanged:
			c.HandleAccountsChanged(s, ev.Accounts)
		case wallet.EventChainChanged:
			c.HandleChainChanged(s, ev.ChainID)
		}
	}))
}

