package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
)

var (
	usdcAddr   = common.HexToAddress("0x5425890298aed601595a70ab815c96711a31bc65")
	eurcAddr   = common.HexToAddress("0xC6C7c0378C73347D49354F7065096E560DF66509")
	senderAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient  = "0x2222222222222222222222222222222222222222"
	testHash   = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000def")
)

func testChain() entities.ChainConfig {
	return entities.ChainConfig{
		Key:            entities.NetworkFuji,
		ChainID:        entities.FujiChainID,
		Name:           "Avalanche Fuji Testnet",
		NativeCurrency: entities.NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
		RPCURLs:        []string{"https://api.avax-test.network/ext/bc/C/rpc"},
		ExplorerURL:    "https://testnet.snowtrace.io",
		NativePriceUSD: 35,
		Tokens: map[string]entities.TokenDescriptor{
			"USDC": {Symbol: "USDC", Name: "USD Coin", Address: usdcAddr.Hex(), Decimals: 6, Verified: true},
			"EURC": {Symbol: "EURC", Name: "Euro Coin", Address: eurcAddr.Hex(), Decimals: 6},
		},
	}
}

type fakeToken struct {
	symbol      string
	decimals    uint8
	balances    map[common.Address]*big.Int
	decimalsErr error
}

// fakeBackend answers ERC-20 calls by decoding the selector against the real ABI.
type fakeBackend struct {
	mu sync.Mutex

	tokens      map[common.Address]*fakeToken
	native      *big.Int
	nativeErr   error
	gasLimit    uint64
	estimateErr error
	gasPrice    *big.Int
	gasPriceErr error

	receipts     map[common.Hash]*types.Receipt
	pendingPolls int
	receiptCalls  int
	contractCalls int
	estimates     []ethereum.CallMsg
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tokens: map[common.Address]*fakeToken{
			usdcAddr: {symbol: "USDC", decimals: 6, balances: map[common.Address]*big.Int{}},
			eurcAddr: {symbol: "EURC", decimals: 6, balances: map[common.Address]*big.Int{}},
		},
		native:   big.NewInt(0),
		gasLimit: 52000,
		gasPrice: big.NewInt(25_000_000_000),
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (b *fakeBackend) setBalance(token, owner common.Address, raw int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token].balances[owner] = big.NewInt(raw)
}

func (b *fakeBackend) confirm(hash common.Hash, status uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: big.NewInt(1234),
		GasUsed:     45000,
	}
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(entities.FujiChainID), nil
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contractCalls++

	tok, ok := b.tokens[*msg.To]
	if !ok {
		return nil, nil
	}
	method, err := evm.ERC20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		if tok.decimalsErr != nil {
			return nil, tok.decimalsErr
		}
		return method.Outputs.Pack(tok.decimals)
	case "symbol":
		return method.Outputs.Pack(tok.symbol)
	case "balanceOf":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		bal := tok.balances[args[0].(common.Address)]
		if bal == nil {
			bal = big.NewInt(0)
		}
		return method.Outputs.Pack(bal)
	}
	return nil, errors.New("execution reverted")
}

func (b *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.estimates = append(b.estimates, msg)
	return b.gasLimit, b.estimateErr
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, b.gasPriceErr
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return b.native, b.nativeErr
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}

func (b *fakeBackend) SendTransaction(context.Context, *types.Transaction) error {
	return errors.New("transactions go through the wallet provider")
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiptCalls++
	if b.receiptCalls <= b.pendingPolls {
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// fakeProvider is a scripted EIP-1193 wallet.
type fakeProvider struct {
	mu sync.Mutex

	accounts   []string
	chainID    uint64
	connectErr error
	switchErrs []error
	addErr     error
	sendErr    error
	txHash     common.Hash
	onSend     func(wallet.TxArgs)

	calls []string
	sent  []wallet.TxArgs
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: []string{senderAddr.Hex()},
		chainID:  entities.FujiChainID,
		txHash:   testHash,
	}
}

func (p *fakeProvider) Request(_ context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls = append(p.calls, method)
	p.mu.Unlock()

	switch method {
	case wallet.MethodRequestAccounts:
		if p.connectErr != nil {
			return nil, p.connectErr
		}
		return json.Marshal(p.accounts)
	case wallet.MethodAccounts:
		return json.Marshal(p.accounts)
	case wallet.MethodChainID:
		return json.Marshal(hexutil.Uint64(p.chainID))
	case wallet.MethodSwitchChain:
		p.mu.Lock()
		defer p.mu.Unlock()
		if len(p.switchErrs) > 0 {
			err := p.switchErrs[0]
			p.switchErrs = p.switchErrs[1:]
			if err != nil {
				return nil, err
			}
		}
		p.chainID = entities.FujiChainID
		return json.RawMessage("null"), nil
	case wallet.MethodAddChain:
		if p.addErr != nil {
			return nil, p.addErr
		}
		p.mu.Lock()
		p.chainID = entities.FujiChainID
		p.mu.Unlock()
		return json.RawMessage("null"), nil
	case wallet.MethodSendTransaction:
		args := params[0].(wallet.TxArgs)
		p.mu.Lock()
		p.sent = append(p.sent, args)
		p.mu.Unlock()
		if p.sendErr != nil {
			return nil, p.sendErr
		}
		if p.onSend != nil {
			p.onSend(args)
		}
		return json.Marshal(p.txHash)
	}
	return nil, &wallet.ProviderError{Code: wallet.CodeUnsupportedMethod, Message: "unsupported method"}
}

func (p *fakeProvider) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == method {
			n++
		}
	}
	return n
}

// eventProvider adds account/chain notifications to fakeProvider.
type eventProvider struct {
	*fakeProvider
	listeners []func(wallet.Event)
}

func (p *eventProvider) Subscribe(fn func(wallet.Event)) func() {
	p.listeners = append(p.listeners, fn)
	return func() { p.listeners = nil }
}

func (p *eventProvider) emit(ev wallet.Event) {
	for _, fn := range p.listeners {
		fn(ev)
	}
}

type fakeConverter struct {
	rate float64
	err  error
}

func (c *fakeConverter) CalculateReceived(_ context.Context, amount decimal.Decimal, fromFiat, country string) (*entities.ConvertedAmount, error) {
	if c.err != nil {
		return nil, c.err
	}
	currency := "INR"
	if country != "IN" {
		currency = fromFiat
	}
	return &entities.ConvertedAmount{
		Amount:   amount.Mul(decimal.NewFromFloat(c.rate)),
		Currency: currency,
		Rate:     c.rate,
		Source:   entities.RateSourceLive,
	}, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	err     error
	records []*entities.LedgerRecord
}

func (l *fakeLedger) Create(_ context.Context, rec *entities.LedgerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (n *fakeNotifier) TransferCompleted(context.Context, uuid.UUID, *entities.LedgerRecord) error {
	n.calls++
	return n.err
}
