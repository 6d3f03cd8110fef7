package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

// State is a point-in-time view of a user's transfer session.
type State struct {
	IsInitialized bool                       `json:"is_initialized"`
	IsConnecting  bool                       `json:"is_connecting"`
	IsSending     bool                       `json:"is_sending"`
	IsEstimating  bool                       `json:"is_estimating"`
	WalletAddress string                     `json:"wallet_address,omitempty"`
	ChainID       uint64                     `json:"chain_id,omitempty"`
	Error         string                     `json:"error,omitempty"`
	ErrorCode     string                     `json:"error_code,omitempty"`
	PendingTxHash string                     `json:"pending_tx_hash,omitempty"`
	LastTx        *entities.SendMoneyResult  `json:"last_tx,omitempty"`
	Estimate      *entities.TransferEstimate `json:"estimate,omitempty"`
}

// InitResult reports the outcome of a connect attempt.
type InitResult struct {
	Success   bool   `json:"success"`
	Address   string `json:"address,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Facade is the per-user entry point that ties the connector, reader,
// engine and orchestrator together. Its mutex guards state only; the
// sending and estimating flags serialize operations.
type Facade struct {
	userID       uuid.UUID
	connector    *Connector
	reader       *Reader
	engine       *Engine
	orchestrator *Orchestrator
	logger       *logger.Logger

	mu      sync.Mutex
	state   State
	session *WalletSession
}

func NewFacade(userID uuid.UUID, connector *Connector, reader *Reader, engine *Engine, orchestrator *Orchestrator, logger *logger.Logger) *Facade {
	return &Facade{
		userID:       userID,
		connector:    connector,
		reader:       reader,
		engine:       engine,
		orchestrator: orchestrator,
		logger:       logger.With("user_id", userID.String()),
	}
}

func (f *Facade) UserID() uuid.UUID { return f.userID }

// State returns a snapshot of the session state.
func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncSessionLocked()
	return f.state
}

// Session returns the live wallet session, or nil.
func (f *Facade) Session() *WalletSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncSessionLocked()
	return f.session
}

// Connect initializes a wallet session. It is a no-op when one is live.
func (f *Facade) Connect(ctx context.Context) InitResult {
	f.mu.Lock()
	f.syncSessionLocked()
	if f.session != nil {
		res := InitResult{Success: true, Address: f.session.Address().Hex()}
		f.mu.Unlock()
		return res
	}
	if f.state.IsConnecting {
		f.mu.Unlock()
		de := apperrors.InProgressError("connection")
		return InitResult{Error: de.Message, ErrorCode: de.Code}
	}
	f.state.IsConnecting = true
	f.clearErrorLocked()
	f.mu.Unlock()

	s, err := f.connector.Initialize(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsConnecting = false
	if err != nil {
		f.setErrorLocked(err)
		return InitResult{Error: f.state.Error, ErrorCode: f.state.ErrorCode}
	}
	f.adoptLocked(s)
	return InitResult{Success: true, Address: s.Address().Hex()}
}

// AutoConnect adopts an already authorized account. It reports whether a
// session is live afterwards.
func (f *Facade) AutoConnect(ctx context.Context) (bool, error) {
	if f.Session() != nil {
		return true, nil
	}
	s, err := f.connector.AutoConnect(ctx)
	if err != nil || s == nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != nil && f.session.IsConnected() {
		s.Close()
		return true, nil
	}
	f.adoptLocked(s)
	return true, nil
}

// Disconnect tears down the wallet session and resets state.
func (f *Facade) Disconnect() {
	f.mu.Lock()
	s := f.session
	f.session = nil
	f.state.IsInitialized = false
	f.state.WalletAddress = ""
	f.state.ChainID = 0
	f.mu.Unlock()

	if s != nil {
		f.connector.Disconnect(s)
	}
}

// EnsureConnected returns the live session, connecting once if there is none.
func (f *Facade) EnsureConnected(ctx context.Context) (*WalletSession, error) {
	if s := f.Session(); s != nil {
		return s, nil
	}
	res := f.Connect(ctx)
	if !res.Success {
		return nil, &apperrors.DomainError{Err: apperrors.ErrNotInitialized, Code: res.ErrorCode, Message: res.Error}
	}
	if s := f.Session(); s != nil {
		return s, nil
	}
	return nil, apperrors.NotInitializedError()
}

// Estimate prices a transfer on the live session.
func (f *Facade) Estimate(ctx context.Context, req entities.TransferRequest) (*entities.TransferEstimate, error) {
	s, err := f.begin(opEstimate)
	if err != nil {
		return nil, err
	}

	est, err := f.engine.EstimateTransfer(ctx, s, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsEstimating = false
	if err != nil {
		f.setErrorLocked(err)
		return nil, err
	}
	f.state.Estimate = est
	return est, nil
}

// Send submits a transfer on the live session and records it once confirmed.
// Transfer failures are reported in the result.
func (f *Facade) Send(ctx context.Context, req entities.TransferRequest) (*entities.SendMoneyResult, error) {
	s, err := f.begin(opSend)
	if err != nil {
		return nil, err
	}

	res, err := f.engine.SendTransfer(ctx, s, req, func(hash common.Hash) {
		f.mu.Lock()
		f.state.PendingTxHash = hash.Hex()
		f.mu.Unlock()
	})
	if err != nil {
		f.mu.Lock()
		f.state.IsSending = false
		f.setErrorLocked(err)
		f.mu.Unlock()
		return nil, err
	}

	out := &entities.SendMoneyResult{TransferResult: res}
	if res.Success && f.orchestrator != nil {
		out = f.orchestrator.Complete(ctx, f.userID, req, res)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsSending = false
	f.state.LastTx = out
	if res.Success {
		f.state.PendingTxHash = ""
	} else {
		f.state.PendingTxHash = res.SubmittedTxHash
		f.state.Error = res.Error
		f.state.ErrorCode = res.ErrorCode
	}
	return out, nil
}

// SendMoney connects if needed, at most once, and then sends.
func (f *Facade) SendMoney(ctx context.Context, req entities.TransferRequest) (*entities.SendMoneyResult, error) {
	if _, err := f.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return f.Send(ctx, req)
}

// Balances reads native and token balances of the connected wallet.
func (f *Facade) Balances(ctx context.Context) (*entities.Balances, error) {
	s := f.Session()
	if s == nil {
		return nil, apperrors.NotInitializedError()
	}
	return f.reader.GetAllBalances(ctx, s.Address())
}

func (f *Facade) ResetError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearErrorLocked()
}

func (f *Facade) ResetLastTx() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.LastTx = nil
}

// Busy reports whether a send or estimate is running.
func (f *Facade) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.IsSending || f.state.IsEstimating
}

type operation int

const (
	opEstimate operation = iota
	opSend
)

func (op operation) String() string {
	if op == opSend {
		return "transfer"
	}
	return "estimate"
}

// begin claims the session for op. Sending and estimating exclude each other.
func (f *Facade) begin(op operation) (*WalletSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.syncSessionLocked()
	if f.session == nil {
		return nil, apperrors.NotInitializedError()
	}
	switch {
	case f.state.IsSending:
		return nil, apperrors.InProgressError(opSend.String())
	case f.state.IsEstimating:
		return nil, apperrors.InProgressError(opEstimate.String())
	}

	f.clearErrorLocked()
	if op == opSend {
		f.state.IsSending = true
		f.state.PendingTxHash = ""
	} else {
		f.state.IsEstimating = true
	}
	return f.session, nil
}

func (f *Facade) adoptLocked(s *WalletSession) {
	f.session = s
	f.state.IsInitialized = true
	f.state.WalletAddress = s.Address().Hex()
	f.state.ChainID = s.ChainID()
}

// syncSessionLocked drops a session the provider has invalidated.
func (f *Facade) syncSessionLocked() {
	if f.session != nil && !f.session.IsConnected() {
		f.logger.Info("Wallet session invalidated by provider")
		f.session = nil
		f.state.IsInitialized = false
		f.state.WalletAddress = ""
		f.state.ChainID = 0
	}
}

func (f *Facade) setErrorLocked(err error) {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		f.state.Error = de.Message
		f.state.ErrorCode = de.Code
		return
	}
	f.state.Error = err.Error()
	f.state.ErrorCode = apperrors.GetErrorCode(err)
}

func (f *Facade) clearErrorLocked() {
	f.state.Error = ""
	f.state.ErrorCode = ""
}
