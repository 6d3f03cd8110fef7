package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
)

// KeyProvider answers wallet requests with an in-process private key and
// submits signed transactions through the chain backend.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	backend evm.Backend
	logger  *zap.Logger

	// serialises nonce allocation across concurrent senders
	sendMu sync.Mutex
}

var _ Provider = (*KeyProvider)(nil)

// NewKeyProvider parses a hex private key (with or without 0x).
func NewKeyProvider(hexKey string, chainID uint64, backend evm.Backend, logger *zap.Logger) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
		backend: backend,
		logger:  logger,
	}, nil
}

func (p *KeyProvider) Address() common.Address { return p.address }

func (p *KeyProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	switch method {
	case MethodRequestAccounts, MethodAccounts:
		return json.Marshal([]string{p.address.Hex()})
	case MethodChainID:
		return json.Marshal(hexutil.EncodeBig(p.chainID))
	case MethodSwitchChain:
		return p.switchChain(params)
	case MethodAddChain:
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "in-process signer cannot add networks"}
	case MethodSendTransaction:
		return p.sendTransaction(ctx, params)
	default:
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method " + method}
	}
}

func (p *KeyProvider) switchChain(params []interface{}) (json.RawMessage, error) {
	var req SwitchChainParams
	if err := decodeParam(params, &req); err != nil {
		return nil, &ProviderError{Code: CodeInternalError, Message: err.Error()}
	}
	requested, err := hexutil.DecodeBig(req.ChainID)
	if err != nil {
		return nil, &ProviderError{Code: CodeInternalError, Message: "invalid chainId: " + err.Error()}
	}
	if requested.Cmp(p.chainID) != 0 {
		return nil, &ProviderError{Code: CodeUnrecognizedChain, Message: "unrecognized chain " + req.ChainID}
	}
	return json.RawMessage("null"), nil
}

func (p *KeyProvider) sendTransaction(ctx context.Context, params []interface{}) (json.RawMessage, error) {
	var args TxArgs
	if err := decodeParam(params, &args); err != nil {
		return nil, &ProviderError{Code: CodeInternalError, Message: err.Error()}
	}
	if args.From != p.address {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "from address is not managed by this signer"}
	}
	if args.To == nil {
		return nil, &ProviderError{Code: CodeInternalError, Message: "contract creation is not supported"}
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	var gas uint64
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	} else {
		estimated, err := p.backend.EstimateGas(ctx, ethereum.CallMsg{From: p.address, To: args.To, Data: args.Data, Value: value})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gas = estimated
	}

	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	nonce, err := p.backend.PendingNonceAt(ctx, p.address)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       args.To,
		Value:    value,
		Data:     args.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	p.logger.Info("Transaction submitted",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas))

	return json.Marshal(signed.Hash())
}

// decodeParam reads the first positional param into out, accepting either a
// typed value or a generic map.
func decodeParam(params []interface{}, out interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return fmt.Errorf("encode param: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode param: %w", err)
	}
	return nil
}
