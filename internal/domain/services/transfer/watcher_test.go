package transfer

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

type fakeSubscription struct {
	errCh        chan error
	unsubscribed chan struct{}
	once         sync.Once
}

func (s *fakeSubscription) Err() <-chan error { return s.errCh }
func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.unsubscribed) })
}

type fakeSubscriber struct {
	query ethereum.FilterQuery
	logs  chan<- types.Log
	sub   *fakeSubscription
}

func (f *fakeSubscriber) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.query = q
	f.logs = ch
	f.sub = &fakeSubscription{errCh: make(chan error, 1), unsubscribed: make(chan struct{})}
	return f.sub, nil
}

func transferLog(from, to common.Address, value int64) types.Log {
	data, _ := evm.ERC20ABI.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(value))
	return types.Log{
		Address:     usdcAddr,
		Topics:      []common.Hash{evm.TransferEventID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        data,
		TxHash:      testHash,
		BlockNumber: 77,
	}
}

func TestWatcher_StreamsTransfers(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewWatcher(sub, NewReader(newFakeBackend(), testChain(), logger.NewNop()), testChain(), logger.NewNop())

	events := make(chan entities.TransferEvent, 1)
	stop, err := w.Subscribe(context.Background(), "USDC", senderAddr, func(ev entities.TransferEvent) { events <- ev })
	require.NoError(t, err)

	require.Len(t, sub.query.Topics, 2)
	assert.Equal(t, []common.Address{usdcAddr}, sub.query.Addresses)

	removed := transferLog(senderAddr, common.HexToAddress(recipient), 1)
	removed.Removed = true
	sub.logs <- removed
	sub.logs <- transferLog(senderAddr, common.HexToAddress(recipient), 2_500_000)

	select {
	case ev := <-events:
		assert.Equal(t, "USDC", ev.Token)
		assert.Equal(t, "2.5", ev.Amount)
		assert.Equal(t, senderAddr.Hex(), ev.From)
		assert.Equal(t, uint64(77), ev.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	stop()
	select {
	case <-sub.sub.unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("subscription not released")
	}
}

func TestWatcher_Errors(t *testing.T) {
	reader := NewReader(newFakeBackend(), testChain(), logger.NewNop())

	_, err := NewWatcher(nil, reader, testChain(), logger.NewNop()).Subscribe(context.Background(), "USDC", senderAddr, func(entities.TransferEvent) {})
	assert.Error(t, err)

	_, err = NewWatcher(&fakeSubscriber{}, reader, testChain(), logger.NewNop()).Subscribe(context.Background(), "DAI", senderAddr, func(entities.TransferEvent) {})
	assert.Error(t, err)
}
