package transfer

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/metrics"
	"github.com/ryzan/ryzan_service/pkg/tracing"
	"github.com/ryzan/ryzan_service/pkg/units"
)

// RateConverter converts a sent amount into the recipient's local currency.
type RateConverter interface {
	CalculateReceived(ctx context.Context, amount decimal.Decimal, fromFiat, country string) (*entities.ConvertedAmount, error)
}

// EngineConfig holds transfer engine configuration
type EngineConfig struct {
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	FallbackGasPrice    *big.Int
	EstimatedTime       string
}

// DefaultEngineConfig returns the Avalanche defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ConfirmationTimeout: 2 * time.Minute,
		PollInterval:        time.Second,
		FallbackGasPrice:    units.Gwei(25),
		EstimatedTime:       "2-5 seconds",
	}
}

// Engine estimates and submits ERC-20 transfers through a wallet session.
type Engine struct {
	backend evm.Backend
	chain   entities.ChainConfig
	rates   RateConverter
	config  EngineConfig
	logger  *logger.Logger
	now     func() time.Time
}

func NewEngine(backend evm.Backend, chain entities.ChainConfig, rates RateConverter, config EngineConfig, logger *logger.Logger) *Engine {
	defaults := DefaultEngineConfig()
	if config.ConfirmationTimeout <= 0 {
		config.ConfirmationTimeout = defaults.ConfirmationTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.FallbackGasPrice == nil {
		config.FallbackGasPrice = defaults.FallbackGasPrice
	}
	if config.EstimatedTime == "" {
		config.EstimatedTime = defaults.EstimatedTime
	}
	return &Engine{
		backend: backend,
		chain:   chain,
		rates:   rates,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// EstimateTransfer prices a transfer without submitting it. The rate lookup
// never fails the estimate.
func (e *Engine) EstimateTransfer(ctx context.Context, s *WalletSession, req entities.TransferRequest) (est *entities.TransferEstimate, err error) {
	if !s.IsConnected() {
		return nil, apperrors.NotInitializedError()
	}
	ctx, span := tracing.StartSpan(ctx, "transfer.estimate", attribute.String("currency", req.Currency))
	defer func() {
		tracing.EndSpan(span, err)
		if err != nil {
			metrics.RecordEstimate("error")
		} else {
			metrics.RecordEstimate("ok")
		}
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	token, ok := e.chain.Token(req.Currency)
	if !ok {
		return nil, apperrors.UnsupportedCurrencyError(req.Currency)
	}
	tokenAddr := common.HexToAddress(token.Address)

	decimals, err := evm.NewERC20(tokenAddr, e.backend).Decimals(ctx)
	if err != nil {
		return nil, classify(err)
	}
	raw, err := units.ToBaseUnits(req.Amount, decimals)
	if err != nil {
		return nil, apperrors.ValidationError("amount", err.Error())
	}
	data, err := evm.PackTransfer(common.HexToAddress(req.ToAddress), raw)
	if err != nil {
		return nil, err
	}

	gasLimit, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.Address(), To: &tokenAddr, Data: data})
	if err != nil {
		e.logger.Warn("Gas estimation failed, using standard limit", "currency", token.Symbol, "error", err)
		gasLimit = entities.GasLimitTransferERC20
	}
	gasPrice := e.gasPrice(ctx)

	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	gasCost := units.FromBaseUnits(cost, e.chain.NativeCurrency.Decimals)
	fiat := gasCost.Mul(decimal.NewFromFloat(e.chain.NativePriceUSD))

	est = &entities.TransferEstimate{
		GasLimit:          gasLimit,
		GasPriceWei:       gasPrice.String(),
		GasCost:           gasCost.String(),
		GasCostFiatApprox: "$" + fiat.StringFixed(4),
		NetworkFee:        "~$" + fiat.StringFixed(2),
		EstimatedTime:     e.config.EstimatedTime,
	}

	sourceFiat := entities.FiatForToken(token.Symbol)
	receives := req.Amount
	est.RecipientReceives = &receives
	est.ReceivedCurrency = sourceFiat

	if req.RecipientCountry != "" && e.rates != nil {
		conv, err := e.rates.CalculateReceived(ctx, req.Amount, sourceFiat, req.RecipientCountry)
		if err != nil {
			e.logger.Warn("Recipient conversion unavailable", "country", req.RecipientCountry, "error", err)
		} else {
			rate := conv.Rate
			amount := conv.Amount
			est.ExchangeRate = &rate
			est.RecipientReceives = &amount
			est.ReceivedCurrency = conv.Currency
			est.RateSource = conv.Source
		}
	}
	return est, nil
}

// SendTransfer runs a transfer to confirmation. Expected failures are
// reported in the result; the error is reserved for a missing session.
// onSubmitted, if set, is called with the hash as soon as the provider
// accepts the transaction.
func (e *Engine) SendTransfer(ctx context.Context, s *WalletSession, req entities.TransferRequest, onSubmitted func(common.Hash)) (entities.TransferResult, error) {
	if !s.IsConnected() {
		return entities.TransferResult{}, apperrors.NotInitializedError()
	}
	ctx, span := tracing.StartSpan(ctx, "transfer.send",
		attribute.String("currency", strings.ToUpper(req.Currency)),
		attribute.String("from", s.Address().Hex()),
	)

	result := e.send(ctx, s, req, onSubmitted)

	var spanErr error
	if !result.Success {
		spanErr = errors.New(result.Error)
	}
	tracing.EndSpan(span, spanErr)
	metrics.RecordTransfer(strings.ToUpper(req.Currency), outcome(result))
	return result, nil
}

func (e *Engine) send(ctx context.Context, s *WalletSession, req entities.TransferRequest, onSubmitted func(common.Hash)) entities.TransferResult {
	if err := validateRequest(req); err != nil {
		return failed(err)
	}
	token, ok := e.chain.Token(req.Currency)
	if !ok {
		return failed(apperrors.UnsupportedCurrencyError(req.Currency))
	}
	tokenAddr := common.HexToAddress(token.Address)
	erc20 := evm.NewERC20(tokenAddr, e.backend)

	decimals, err := erc20.Decimals(ctx)
	if err != nil {
		return failed(err)
	}
	raw, err := units.ToBaseUnits(req.Amount, decimals)
	if err != nil {
		return failed(apperrors.ValidationError("amount", err.Error()))
	}

	balance, err := erc20.BalanceOf(ctx, s.Address())
	if err != nil {
		return failed(err)
	}
	if balance.Cmp(raw) < 0 {
		shortfall := new(big.Int).Sub(raw, balance)
		e.logger.Info("Transfer rejected, insufficient balance",
			"from", s.Address().Hex(), "currency", token.Symbol,
			"balance", units.FormatBaseUnits(balance, decimals), "amount", req.Amount.String())
		return failed(apperrors.InsufficientBalanceError(token.Symbol,
			units.FormatBaseUnits(balance, decimals), units.FormatBaseUnits(shortfall, decimals)))
	}

	data, err := evm.PackTransfer(common.HexToAddress(req.ToAddress), raw)
	if err != nil {
		return failed(err)
	}

	// From here on the transaction may be on the network: the caller going
	// away must not stop us from observing its outcome.
	detached := context.WithoutCancel(ctx)

	hash, err := wallet.SendTransaction(detached, s.Provider(), wallet.TxArgs{
		From: s.Address(),
		To:   &tokenAddr,
		Data: data,
	})
	if err != nil {
		e.logger.Warn("Transfer submission failed", "from", s.Address().Hex(), "currency", token.Symbol, "error", err)
		return failed(err)
	}

	submittedAt := e.now()
	e.logger.Info("Transfer submitted",
		"tx_hash", hash.Hex(), "from", s.Address().Hex(), "to", req.ToAddress,
		"amount", req.Amount.String(), "currency", token.Symbol)
	if onSubmitted != nil {
		onSubmitted(hash)
	}

	receipt, err := e.waitForReceipt(detached, hash)
	if err != nil {
		e.logger.Error("Transfer not confirmed", "tx_hash", hash.Hex(), "error", err)
		r := failed(apperrors.UnconfirmedTransactionError(hash.Hex()))
		r.SubmittedTxHash = hash.Hex()
		return r
	}
	metrics.ObserveConfirmation(token.Symbol, e.now().Sub(submittedAt).Seconds())

	if receipt.Status != types.ReceiptStatusSuccessful {
		e.logger.Error("Transfer reverted", "tx_hash", hash.Hex(), "block", receipt.BlockNumber)
		r := failed(apperrors.RevertedTransactionError(hash.Hex()))
		r.SubmittedTxHash = hash.Hex()
		return r
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	e.logger.Info("Transfer confirmed", "tx_hash", hash.Hex(), "block", block, "gas_used", receipt.GasUsed)
	return entities.TransferSucceeded(hash.Hex(), block, receipt.GasUsed, e.now())
}

// waitForReceipt polls for the receipt until it appears or the confirmation
// timeout elapses.
func (e *Engine) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.ConfirmationTimeout)
	defer cancel()

	return backoff.Retry(ctx, func() (*types.Receipt, error) {
		receipt, err := e.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			if !evm.IsNotFound(err) {
				e.logger.Debug("Receipt lookup failed", "tx_hash", hash.Hex(), "error", err)
			}
			return nil, err
		}
		return receipt, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(e.config.PollInterval)),
		backoff.WithMaxElapsedTime(e.config.ConfirmationTimeout),
	)
}

func (e *Engine) gasPrice(ctx context.Context) *big.Int {
	price, err := e.backend.SuggestGasPrice(ctx)
	if err != nil || price == nil || price.Sign() <= 0 {
		e.logger.Debug("Gas price unavailable, using fallback", "error", err)
		return new(big.Int).Set(e.config.FallbackGasPrice)
	}
	return price
}

func validateRequest(req entities.TransferRequest) error {
	if !isAddress(req.ToAddress) {
		return apperrors.ValidationError("to_address", "recipient must be a 0x-prefixed 40 hex character address")
	}
	if !req.Amount.IsPositive() {
		return apperrors.ValidationError("amount", "amount must be greater than zero")
	}
	// the token's decimals are not known yet; they are checked again in ToBaseUnits
	if err := units.CheckMagnitude(req.Amount, 0); err != nil {
		return apperrors.ValidationError("amount", err.Error())
	}
	return nil
}

func isAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
