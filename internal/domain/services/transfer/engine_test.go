package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

func newTestEngine(backend *fakeBackend, rates RateConverter) *Engine {
	return NewEngine(backend, testChain(), rates, EngineConfig{
		ConfirmationTimeout: 100 * time.Millisecond,
		PollInterval:        time.Millisecond,
	}, logger.NewNop())
}

func connectedSession(t *testing.T, p wallet.Provider) *WalletSession {
	t.Helper()
	s, err := newTestConnector(p).Initialize(context.Background())
	require.NoError(t, err)
	return s
}

func sendRequest(amount string, currency string) entities.TransferRequest {
	return entities.TransferRequest{
		ToAddress: recipient,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
	}
}

func TestEngine_SendTransfer_Success(t *testing.T) {
	backend := newFakeBackend()
	backend.setBalance(usdcAddr, senderAddr, 200_000_000)
	backend.pendingPolls = 3
	p := newFakeProvider()
	p.onSend = func(wallet.TxArgs) { backend.confirm(testHash, types.ReceiptStatusSuccessful) }

	var submitted common.Hash
	res, err := newTestEngine(backend, nil).SendTransfer(context.Background(), connectedSession(t, p),
		sendRequest("100", "usdc"), func(h common.Hash) { submitted = h })
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Consistent())
	assert.Equal(t, testHash.Hex(), res.TxHash)
	assert.Equal(t, testHash, submitted)
	assert.Equal(t, uint64(1234), res.BlockNumber)
	assert.Equal(t, "45000", res.GasUsed)
	require.NotNil(t, res.Timestamp)

	require.Len(t, p.sent, 1)
	args := p.sent[0]
	assert.Equal(t, senderAddr, args.From)
	assert.Equal(t, usdcAddr, *args.To)
	want, err := evm.PackTransfer(common.HexToAddress(recipient), decimal.NewFromInt(100_000_000).BigInt())
	require.NoError(t, err)
	assert.Equal(t, want, []byte(args.Data))
}

func TestEngine_SendTransfer_InsufficientBalanceNeverSubmits(t *testing.T) {
	backend := newFakeBackend()
	backend.setBalance(usdcAddr, senderAddr, 50_000_000)
	p := newFakeProvider()

	res, err := newTestEngine(backend, nil).SendTransfer(context.Background(), connectedSession(t, p), sendRequest("100", "USDC"), nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Consistent())
	assert.Equal(t, apperrors.CodeInsufficientBalance, res.ErrorCode)
	assert.Contains(t, res.Error, "insufficient")
	assert.Contains(t, res.Error, "50")
	assert.Zero(t, p.count(wallet.MethodSendTransaction))
}

func TestEngine_SendTransfer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		req      entities.TransferRequest
		setup    func(*fakeBackend, *fakeProvider)
		wantCode string
		wantMsg  string
		submits  bool
	}{
		{
			name:     "invalid address",
			req:      entities.TransferRequest{ToAddress: "2222222222222222222222222222222222222222", Amount: decimal.NewFromInt(1), Currency: "USDC"},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "zero amount",
			req:      sendRequest("0", "USDC"),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "unsupported currency",
			req:      sendRequest("1", "DAI"),
			wantCode: apperrors.CodeUnsupportedCurrency,
		},
		{
			name:     "amount beyond uint256",
			req:      sendRequest("1e999999999", "USDC"),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "scaled amount beyond uint256",
			req:      sendRequest("1e72", "USDC"),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "more decimals than the token",
			req:      sendRequest("1.0000001", "USDC"),
			wantCode: apperrors.CodeValidation,
		},
		{
			name: "user rejects in wallet",
			req:  sendRequest("1", "USDC"),
			setup: func(_ *fakeBackend, p *fakeProvider) {
				p.sendErr = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User denied transaction signature"}
			},
			wantCode: apperrors.CodeUserRejected,
			wantMsg:  "transaction cancelled by user",
			submits:  true,
		},
		{
			name: "no gas",
			req:  sendRequest("1", "USDC"),
			setup: func(_ *fakeBackend, p *fakeProvider) {
				p.sendErr = errors.New("insufficient funds for gas * price + value")
			},
			wantCode: apperrors.CodeInsufficientGas,
			wantMsg:  "insufficient funds for network fee",
			submits:  true,
		},
		{
			name: "unknown provider error kept verbatim",
			req:  sendRequest("1", "USDC"),
			setup: func(_ *fakeBackend, p *fakeProvider) {
				p.sendErr = errors.New("nonce too low")
			},
			wantCode: apperrors.CodeTransferFailed,
			wantMsg:  "nonce too low",
			submits:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.setBalance(usdcAddr, senderAddr, 10_000_000)
			p := newFakeProvider()
			if tt.setup != nil {
				tt.setup(backend, p)
			}

			res, err := newTestEngine(backend, nil).SendTransfer(context.Background(), connectedSession(t, p), tt.req, nil)
			require.NoError(t, err)

			assert.False(t, res.Success)
			assert.True(t, res.Consistent())
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, res.Error)
			}
			assert.Equal(t, tt.submits, p.count(wallet.MethodSendTransaction) > 0)
		})
	}
}

func TestEngine_SendTransfer_Reverted(t *testing.T) {
	backend := newFakeBackend()
	backend.setBalance(usdcAddr, senderAddr, 10_000_000)
	p := newFakeProvider()
	p.onSend = func(wallet.TxArgs) { backend.confirm(testHash, types.ReceiptStatusFailed) }

	res, err := newTestEngine(backend, nil).SendTransfer(context.Background(), connectedSession(t, p), sendRequest("1", "USDC"), nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeReverted, res.ErrorCode)
	assert.Empty(t, res.TxHash)
	assert.Equal(t, testHash.Hex(), res.SubmittedTxHash)
}

func TestEngine_SendTransfer_Unconfirmed(t *testing.T) {
	backend := newFakeBackend()
	backend.setBalance(usdcAddr, senderAddr, 10_000_000)
	p := newFakeProvider()

	res, err := newTestEngine(backend, nil).SendTransfer(context.Background(), connectedSession(t, p), sendRequest("1", "USDC"), nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Consistent())
	assert.Equal(t, apperrors.CodeUnconfirmed, res.ErrorCode)
	assert.Equal(t, testHash.Hex(), res.SubmittedTxHash)
	assert.Greater(t, backend.receiptCalls, 1)
}

func TestEngine_SendTransfer_CallerCancelAfterSubmit(t *testing.T) {
	backend := newFakeBackend()
	backend.setBalance(usdcAddr, senderAddr, 10_000_000)
	backend.pendingPolls = 5
	p := newFakeProvider()

	ctx, cancel := context.WithCancel(context.Background())
	p.onSend = func(wallet.TxArgs) {
		cancel()
		backend.confirm(testHash, types.ReceiptStatusSuccessful)
	}

	res, err := newTestEngine(backend, nil).SendTransfer(ctx, connectedSession(t, p), sendRequest("1", "USDC"), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestEngine_SendTransfer_RequiresSession(t *testing.T) {
	_, err := newTestEngine(newFakeBackend(), nil).SendTransfer(context.Background(), nil, sendRequest("1", "USDC"), nil)
	assert.True(t, errors.Is(err, apperrors.ErrNotInitialized))

	s := connectedSession(t, newFakeProvider())
	s.Close()
	_, err = newTestEngine(newFakeBackend(), nil).SendTransfer(context.Background(), s, sendRequest("1", "USDC"), nil)
	assert.True(t, errors.Is(err, apperrors.ErrNotInitialized))
}

func TestEngine_EstimateTransfer(t *testing.T) {
	backend := newFakeBackend()
	s := connectedSession(t, newFakeProvider())

	est, err := newTestEngine(backend, nil).EstimateTransfer(context.Background(), s, sendRequest("10", "USDC"))
	require.NoError(t, err)

	// 52000 gas at 25 gwei = 0.0013 AVAX, at 35 USD = 0.0455
	assert.Equal(t, uint64(52000), est.GasLimit)
	assert.Equal(t, "0.0013", est.GasCost)
	assert.Equal(t, "$0.0455", est.GasCostFiatApprox)
	assert.Equal(t, "~$0.05", est.NetworkFee)
	assert.Equal(t, "2-5 seconds", est.EstimatedTime)
	require.NotNil(t, est.RecipientReceives)
	assert.True(t, decimal.NewFromInt(10).Equal(*est.RecipientReceives))
	assert.Nil(t, est.ExchangeRate)

	require.Len(t, backend.estimates, 1)
	assert.Equal(t, senderAddr, backend.estimates[0].From)
}

func TestEngine_EstimateTransfer_FallbackGasPrice(t *testing.T) {
	backend := newFakeBackend()
	backend.gasPriceErr = errors.New("rpc down")
	backend.estimateErr = errors.New("execution reverted")
	s := connectedSession(t, newFakeProvider())

	est, err := newTestEngine(backend, nil).EstimateTransfer(context.Background(), s, sendRequest("10", "USDC"))
	require.NoError(t, err)

	assert.Equal(t, entities.GasLimitTransferERC20, est.GasLimit)
	assert.Equal(t, "25000000000", est.GasPriceWei)
}

func TestEngine_EstimateTransfer_WithRecipientCountry(t *testing.T) {
	s := connectedSession(t, newFakeProvider())
	req := sendRequest("100", "EURC")
	req.RecipientCountry = "IN"

	est, err := newTestEngine(newFakeBackend(), &fakeConverter{rate: 89.5}).EstimateTransfer(context.Background(), s, req)
	require.NoError(t, err)

	require.NotNil(t, est.ExchangeRate)
	assert.Equal(t, 89.5, *est.ExchangeRate)
	require.NotNil(t, est.RecipientReceives)
	assert.True(t, decimal.NewFromInt(8950).Equal(*est.RecipientReceives), est.RecipientReceives.String())
	assert.Equal(t, "INR", est.ReceivedCurrency)
}

func TestEngine_EstimateTransfer_RateFailureStillEstimates(t *testing.T) {
	s := connectedSession(t, newFakeProvider())
	req := sendRequest("100", "EURC")
	req.RecipientCountry = "IN"

	est, err := newTestEngine(newFakeBackend(), &fakeConverter{err: errors.New("rates down")}).EstimateTransfer(context.Background(), s, req)
	require.NoError(t, err)
	assert.NotEmpty(t, est.GasCost)
	assert.Equal(t, "EUR", est.ReceivedCurrency)
}

func TestEngine_EstimateTransfer_Errors(t *testing.T) {
	s := connectedSession(t, newFakeProvider())
	e := newTestEngine(newFakeBackend(), nil)

	_, err := e.EstimateTransfer(context.Background(), nil, sendRequest("1", "USDC"))
	assert.True(t, errors.Is(err, apperrors.ErrNotInitialized))

	_, err = e.EstimateTransfer(context.Background(), s, sendRequest("1", "XYZ"))
	assert.Equal(t, apperrors.CodeUnsupportedCurrency, apperrors.GetErrorCode(err))

	_, err = e.EstimateTransfer(context.Background(), s, sendRequest("-1", "USDC"))
	assert.Equal(t, apperrors.CodeValidation, apperrors.GetErrorCode(err))
}

func TestEngine_OversizedAmountRejectedBeforeRPC(t *testing.T) {
	backend := newFakeBackend()
	p := newFakeProvider()
	s := connectedSession(t, p)
	engine := newTestEngine(backend, nil)

	res, err := engine.SendTransfer(context.Background(), s, sendRequest("1e999999999", "USDC"), nil)
	require.NoError(t, err)
	assert.Equal(t, apperrors.CodeValidation, res.ErrorCode)

	_, err = engine.EstimateTransfer(context.Background(), s, sendRequest("1e999999999", "USDC"))
	assert.Equal(t, apperrors.CodeValidation, apperrors.GetErrorCode(err))

	assert.Zero(t, backend.contractCalls)
}
