package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/units"
)

const metadataTTL = 24 * time.Hour

// TokenMetadata is the on-chain identity of a token, cached for display.
type TokenMetadata struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Reader performs read-only token queries against the chain.
type Reader struct {
	backend evm.Backend
	chain   entities.ChainConfig
	meta    *cache.Cache
	logger  *logger.Logger
}

func NewReader(backend evm.Backend, chain entities.ChainConfig, logger *logger.Logger) *Reader {
	return &Reader{
		backend: backend,
		chain:   chain,
		meta:    cache.New(metadataTTL, time.Hour),
		logger:  logger,
	}
}

// GetTokenBalance reads balance, decimals and symbol in parallel and formats
// the balance with the token's own decimals.
func (r *Reader) GetTokenBalance(ctx context.Context, token, owner common.Address) (*entities.TokenBalance, error) {
	erc20 := evm.NewERC20(token, r.backend)

	var (
		balance  *big.Int
		decimals uint8
		symbol   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = erc20.BalanceOf(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		decimals, err = erc20.Decimals(gctx)
		return err
	})
	g.Go(func() (err error) {
		symbol, err = erc20.Symbol(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("balance unavailable for %s: %w", token.Hex(), err)
	}

	r.meta.SetDefault(metadataKey(token), TokenMetadata{Address: token, Symbol: symbol, Decimals: decimals})

	return &entities.TokenBalance{
		Symbol:    symbol,
		Balance:   units.FormatBaseUnits(balance, decimals),
		Decimals:  decimals,
		Available: true,
	}, nil
}

// GetAllBalances returns the native balance and every configured token. Only
// a native balance failure is fatal; a failing token is reported unavailable.
func (r *Reader) GetAllBalances(ctx context.Context, owner common.Address) (*entities.Balances, error) {
	native, err := r.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("balance unavailable for native %s: %w", r.chain.NativeCurrency.Symbol, err)
	}

	out := &entities.Balances{
		Owner: owner.Hex(),
		Native: entities.TokenBalance{
			Symbol:    r.chain.NativeCurrency.Symbol,
			Balance:   units.FormatBaseUnits(native, r.chain.NativeCurrency.Decimals),
			Decimals:  r.chain.NativeCurrency.Decimals,
			Available: true,
		},
		Tokens: make(map[string]entities.TokenBalance, len(r.chain.Tokens)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, symbol := range r.chain.TokenSymbols() {
		desc, _ := r.chain.Token(symbol)
		g.Go(func() error {
			bal, err := r.GetTokenBalance(ctx, common.HexToAddress(desc.Address), owner)
			if err != nil {
				r.logger.Warn("Token balance unavailable", "token", desc.Symbol, "error", err)
				bal = &entities.TokenBalance{
					Symbol:   desc.Symbol,
					Balance:  "0",
					Decimals: desc.Decimals,
					Error:    err.Error(),
				}
			}
			mu.Lock()
			out.Tokens[desc.Symbol] = *bal
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// Describe returns cached token metadata, reading it from the contract on a miss.
func (r *Reader) Describe(ctx context.Context, symbol string) (TokenMetadata, error) {
	desc, ok := r.chain.Token(symbol)
	if !ok {
		return TokenMetadata{}, apperrors.UnsupportedCurrencyError(symbol)
	}
	addr := common.HexToAddress(desc.Address)
	if v, found := r.meta.Get(metadataKey(addr)); found {
		return v.(TokenMetadata), nil
	}

	erc20 := evm.NewERC20(addr, r.backend)
	var md TokenMetadata
	md.Address = addr
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		md.Decimals, err = erc20.Decimals(gctx)
		return err
	})
	g.Go(func() (err error) {
		md.Symbol, err = erc20.Symbol(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return TokenMetadata{}, fmt.Errorf("describe %s: %w", desc.Symbol, err)
	}

	r.meta.SetDefault(metadataKey(addr), md)
	return md, nil
}

func metadataKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
