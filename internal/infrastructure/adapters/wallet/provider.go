package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EIP-1193 / EIP-1474 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
	CodeInternalError     = -32603
)

// Wallet RPC methods used by the service
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSendTransaction = "eth_sendTransaction"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
)

// Provider is an EIP-1193 style request channel to a signer.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
}

// Event is an unsolicited provider notification.
type Event struct {
	Name     string // accountsChanged or chainChanged
	Accounts []string
	ChainID  string
}

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// EventSource is implemented by providers that push account/chain changes.
type EventSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// ProviderError is a structured error returned by a provider.
type ProviderError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the provider error code of err, or 0.
func ErrorCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsUserRejection reports whether the user declined the request in their wallet.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if ErrorCode(err) == CodeUserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "action_rejected")
}

// TxArgs are the eth_sendTransaction parameters.
type TxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// SwitchChainParams is the wallet_switchEthereumChain parameter (EIP-3326).
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// RequestAccounts asks the provider for authorized accounts, prompting if needed.
func RequestAccounts(ctx context.Context, p Provider) ([]common.Address, error) {
	return accounts(ctx, p, MethodRequestAccounts)
}

// Accounts returns already-authorized accounts without prompting.
func Accounts(ctx context.Context, p Provider) ([]common.Address, error) {
	return accounts(ctx, p, MethodAccounts)
}

func accounts(ctx context.Context, p Provider, method string) ([]common.Address, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	out := make([]common.Address, 0, len(list))
	for _, a := range list {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("provider returned invalid address %q", a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

// ChainID returns the provider's current chain id.
func ChainID(ctx context.Context, p Provider) (uint64, error) {
	raw, err := p.Request(ctx, MethodChainID)
	if err != nil {
		return 0, err
	}
	var hex hexutil.Uint64
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("decode %s: %w", MethodChainID, err)
	}
	return uint64(hex), nil
}

// SendTransaction submits args through the provider's signer.
func SendTransaction(ctx context.Context, p Provider, args TxArgs) (common.Hash, error) {
	raw, err := p.Request(ctx, MethodSendTransaction, args)
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("decode %s: %w", MethodSendTransaction, err)
	}
	return hash, nil
}
