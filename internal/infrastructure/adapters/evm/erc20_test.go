package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	calls   []ethereum.CallMsg
	results map[string][]byte
	err     error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	method, err := ERC20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	return f.results[method.Name], nil
}

func packOutput(t *testing.T, method string, v interface{}) []byte {
	t.Helper()
	out, err := ERC20ABI.Methods[method].Outputs.Pack(v)
	require.NoError(t, err)
	return out
}

func TestERC20_Reads(t *testing.T) {
	token := common.HexToAddress("0x5425890298aed601595a70AB815c96711a31Bc65")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	caller := &fakeCaller{results: map[string][]byte{
		"balanceOf": packOutput(t, "balanceOf", big.NewInt(1_500_000)),
		"decimals":  packOutput(t, "decimals", uint8(6)),
		"symbol":    packOutput(t, "symbol", "USDC"),
	}}
	erc20 := NewERC20(token, caller)

	bal, err := erc20.BalanceOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), bal.Int64())

	dec, err := erc20.Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	sym, err := erc20.Symbol(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)

	require.Len(t, caller.calls, 3)
	assert.Equal(t, token, *caller.calls[0].To)
}

func TestERC20_EmptyResult(t *testing.T) {
	erc20 := NewERC20(common.Address{1}, &fakeCaller{results: map[string][]byte{}})
	_, err := erc20.Decimals(context.Background())
	assert.ErrorContains(t, err, "empty result")
}

func TestERC20_CallError(t *testing.T) {
	erc20 := NewERC20(common.Address{1}, &fakeCaller{err: errors.New("boom")})
	_, err := erc20.Symbol(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestPackTransfer(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	data, err := PackTransfer(to, big.NewInt(42))
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)

	method, err := ERC20ABI.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "transfer", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, to, args[0])
	assert.Equal(t, int64(42), args[1].(*big.Int).Int64())
}

func TestParseTransferLog(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	data, err := ERC20ABI.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(7))
	require.NoError(t, err)

	parsed, err := ParseTransferLog(types.Log{
		Address:     common.Address{9},
		Topics:      []common.Hash{TransferEventID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        data,
		BlockNumber: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, from, parsed.From)
	assert.Equal(t, to, parsed.To)
	assert.Equal(t, int64(7), parsed.Value.Int64())
	assert.Equal(t, uint64(12), parsed.BlockNumber)

	_, err = ParseTransferLog(types.Log{Topics: []common.Hash{{1}}})
	assert.Error(t, err)
}

func TestTransferFilter(t *testing.T) {
	token := common.Address{1}
	q := TransferFilter(token, nil)
	assert.Equal(t, []common.Address{token}, q.Addresses)
	assert.Len(t, q.Topics, 1)

	from := common.Address{2}
	q = TransferFilter(token, &from)
	require.Len(t, q.Topics, 2)
	assert.Equal(t, common.BytesToHash(from.Bytes()), q.Topics[1][0])
}
