package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/units"
)

// Watcher streams ERC-20 Transfer events sent by a wallet.
type Watcher struct {
	subscriber evm.LogSubscriber
	reader     *Reader
	chain      entities.ChainConfig
	logger     *logger.Logger
}

func NewWatcher(subscriber evm.LogSubscriber, reader *Reader, chain entities.ChainConfig, logger *logger.Logger) *Watcher {
	return &Watcher{subscriber: subscriber, reader: reader, chain: chain, logger: logger}
}

// Subscribe calls fn for every Transfer of symbol sent from owner until the
// returned stop func is called, ctx ends or the subscription fails.
func (w *Watcher) Subscribe(ctx context.Context, symbol string, owner common.Address, fn func(entities.TransferEvent)) (stop func(), err error) {
	if w.subscriber == nil {
		return nil, fmt.Errorf("event streaming requires a websocket RPC endpoint")
	}
	token, ok := w.chain.Token(symbol)
	if !ok {
		return nil, apperrors.UnsupportedCurrencyError(symbol)
	}

	decimals := token.Decimals
	if md, err := w.reader.Describe(ctx, symbol); err == nil {
		decimals = md.Decimals
	} else {
		w.logger.Warn("Using configured decimals for event formatting", "token", token.Symbol, "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	logs := make(chan types.Log, 16)
	sub, err := w.subscriber.SubscribeFilterLogs(ctx, evm.TransferFilter(common.HexToAddress(token.Address), &owner), logs)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to %s transfers: %w", token.Symbol, err)
	}

	var once sync.Once
	stop = func() {
		once.Do(func() {
			sub.Unsubscribe()
			cancel()
		})
	}

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					w.logger.Warn("Transfer subscription ended", "token", token.Symbol, "error", err)
				}
				return
			case l := <-logs:
				if l.Removed {
					continue
				}
				parsed, err := evm.ParseTransferLog(l)
				if err != nil {
					w.logger.Debug("Skipping log", "tx_hash", l.TxHash.Hex(), "error", err)
					continue
				}
				fn(entities.TransferEvent{
					Token:       token.Symbol,
					From:        parsed.From.Hex(),
					To:          parsed.To.Hex(),
					Amount:      units.FormatBaseUnits(parsed.Value, decimals),
					TxHash:      parsed.TxHash.Hex(),
					BlockNumber: parsed.BlockNumber,
				})
			}
		}
	}()

	return stop, nil
}
