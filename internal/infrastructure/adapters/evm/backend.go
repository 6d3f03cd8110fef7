package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const dialTimeout = 10 * time.Second

var ErrNoReachableRPC = errors.New("no reachable RPC endpoint")

// Backend is the subset of ethclient the service reads and submits through.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// LogSubscriber streams contract logs. Only websocket connections support it.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

var (
	_ Backend       = (*ethclient.Client)(nil)
	_ LogSubscriber = (*ethclient.Client)(nil)
)

// Dial connects to the first endpoint in urls that answers with the
// expected chain id.
func Dial(ctx context.Context, urls []string, chainID uint64, logger *zap.Logger) (*ethclient.Client, error) {
	var errs []error
	for _, url := range urls {
		client, err := dialOne(ctx, url, chainID)
		if err != nil {
			logger.Warn("RPC endpoint unavailable", zap.String("url", url), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		logger.Info("Connected to RPC endpoint", zap.String("url", url), zap.Uint64("chain_id", chainID))
		return client, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoReachableRPC, errors.Join(errs...))
}

func dialOne(ctx context.Context, url string, chainID uint64) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if got.Uint64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: want %d, got %s", chainID, got)
	}
	return client, nil
}

// IsNotFound reports whether err is the "not yet mined" sentinel from ethclient.
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
