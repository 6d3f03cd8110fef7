package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// ERC20ABI is the parsed minimal ERC-20 interface.
var ERC20ABI = mustParseABI(erc20ABIJSON)

// TransferEventID is topic[0] of the ERC-20 Transfer event.
var TransferEventID = ERC20ABI.Events["Transfer"].ID

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ERC-20 ABI: %v", err))
	}
	return parsed
}

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC20 is a read binding for one token contract.
type ERC20 struct {
	address common.Address
	caller  ContractCaller
}

func NewERC20(address common.Address, caller ContractCaller) *ERC20 {
	return &ERC20{address: address, caller: caller}
}

func (t *ERC20) Address() common.Address { return t.address }

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out *big.Int
	if err := t.call(ctx, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	var out uint8
	if err := t.call(ctx, &out, "decimals"); err != nil {
		return 0, err
	}
	return out, nil
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	var out string
	if err := t.call(ctx, &out, "symbol"); err != nil {
		return "", err
	}
	return out, nil
}

func (t *ERC20) Name(ctx context.Context) (string, error) {
	var out string
	if err := t.call(ctx, &out, "name"); err != nil {
		return "", err
	}
	return out, nil
}

func (t *ERC20) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	input, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	to := t.address
	res, err := t.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return fmt.Errorf("call %s on %s: %w", method, t.address.Hex(), err)
	}
	if len(res) == 0 {
		return fmt.Errorf("call %s on %s: empty result (not a contract?)", method, t.address.Hex())
	}

	if err := ERC20ABI.UnpackIntoInterface(out, method, res); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

// PackTransfer encodes transfer(to, amount) calldata.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transfer", to, amount)
}

// TransferLog is a decoded ERC-20 Transfer event.
type TransferLog struct {
	Token       common.Address
	From        common.Address
	To          common.Address
	Value       *big.Int
	TxHash      common.Hash
	BlockNumber uint64
}

// ParseTransferLog decodes a Transfer event log.
func ParseTransferLog(l types.Log) (*TransferLog, error) {
	if len(l.Topics) != 3 || l.Topics[0] != TransferEventID {
		return nil, fmt.Errorf("log is not an ERC-20 Transfer event")
	}
	values, err := ERC20ABI.Unpack("Transfer", l.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack Transfer: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected Transfer data length %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected Transfer value type %T", values[0])
	}
	return &TransferLog{
		Token:       l.Address,
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Value:       value,
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
	}, nil
}

// TransferFilter matches Transfer events of token, optionally restricted by sender.
func TransferFilter(token common.Address, from *common.Address) ethereum.FilterQuery {
	topics := [][]common.Hash{{TransferEventID}}
	if from != nil {
		topics = append(topics, []common.Hash{common.BytesToHash(from.Bytes())})
	}
	return ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics:    topics,
	}
}
