package entities

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Explorer link kinds
const (
	ExplorerTx      = "tx"
	ExplorerAddress = "address"
)

// Gas limits used when an estimate is not available
const (
	GasLimitTransferERC20  uint64 = 65000
	GasLimitTransferNative uint64 = 21000
	GasLimitApprove        uint64 = 50000
)

// Avalanche network identifiers
const (
	FujiChainID    uint64 = 43113
	MainnetChainID uint64 = 43114
)

// Network keys used in configuration
const (
	NetworkFuji    = "fuji"
	NetworkMainnet = "mainnet"
)

// NativeCurrency describes the coin gas is paid in.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TokenDescriptor identifies an ERC-20 on one network. Decimals here come from
// configuration and are only a hint for display. Transfers read them on-chain.
type TokenDescriptor struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Verified bool   `json:"verified"`
}

// ChainConfig is the static description of a target network. It is built once
// at startup and never mutated.
type ChainConfig struct {
	Key            string                     `json:"key"`
	ChainID        uint64                     `json:"chain_id"`
	Name           string                     `json:"name"`
	NativeCurrency NativeCurrency             `json:"native_currency"`
	RPCURLs        []string                   `json:"rpc_urls"`
	WebSocketURL   string                     `json:"websocket_url,omitempty"`
	ExplorerURL    string                     `json:"explorer_url"`
	Tokens         map[string]TokenDescriptor `json:"tokens"`
	NativePriceUSD float64                    `json:"native_price_usd"`
}

// ChainIDHex returns the 0x-prefixed chain id used by wallet_switchEthereumChain.
func (c ChainConfig) ChainIDHex() string {
	return fmt.Sprintf("0x%x", c.ChainID)
}

// Token resolves a token by symbol, case-insensitively.
func (c ChainConfig) Token(symbol string) (TokenDescriptor, bool) {
	t, ok := c.Tokens[strings.ToUpper(symbol)]
	return t, ok
}

// TokenSymbols returns the configured token symbols in stable order.
func (c ChainConfig) TokenSymbols() []string {
	symbols := lo.Keys(c.Tokens)
	sort.Strings(symbols)
	return symbols
}

// GetExplorerURL builds a block-explorer link for a transaction or address.
func (c ChainConfig) GetExplorerURL(kind, hash string) string {
	if kind != ExplorerAddress {
		kind = ExplorerTx
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.ExplorerURL, "/"), kind, hash)
}

// AddChainParams is the EIP-3085 payload for wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// AddChainParams renders the chain definition a wallet needs to add it.
func (c ChainConfig) AddChainParams() AddChainParams {
	return AddChainParams{
		ChainID:           c.ChainIDHex(),
		ChainName:         c.Name,
		NativeCurrency:    c.NativeCurrency,
		RPCURLs:           c.RPCURLs,
		BlockExplorerURLs: []string{strings.TrimRight(c.ExplorerURL, "/") + "/"},
	}
}

// DefaultNetworks returns the built-in Avalanche Fuji and C-Chain definitions.
func DefaultNetworks() map[string]ChainConfig {
	avax := NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18}

	return map[string]ChainConfig{
		NetworkFuji: {
			Key:            NetworkFuji,
			ChainID:        FujiChainID,
			Name:           "Avalanche Fuji Testnet",
			NativeCurrency: avax,
			RPCURLs: []string{
				"https://api.avax-test.network/ext/bc/C/rpc",
				"https://avalanche-fuji-c-chain.publicnode.com",
			},
			WebSocketURL: "wss://api.avax-test.network/ext/bc/C/ws",
			ExplorerURL:  "https://testnet.snowtrace.io",
			Tokens: map[string]TokenDescriptor{
				"USDC":  {Symbol: "USDC", Name: "USD Coin", Address: "0x5425890298aed601595a70ab815c96711a31bc65", Decimals: 6, Verified: true},
				"EURC":  {Symbol: "EURC", Name: "Euro Coin", Address: "0xC6C7c0378C73347D49354F7065096E560DF66509", Decimals: 6, Verified: false},
				"WAVAX": {Symbol: "WAVAX", Name: "Wrapped AVAX", Address: "0xd00ae08403B9bbb9124bB305C09058E32C39A48c", Decimals: 18, Verified: true},
			},
			NativePriceUSD: 35,
		},
		NetworkMainnet: {
			Key:            NetworkMainnet,
			ChainID:        MainnetChainID,
			Name:           "Avalanche C-Chain",
			NativeCurrency: avax,
			RPCURLs: []string{
				"https://api.avax.network/ext/bc/C/rpc",
				"https://avalanche-c-chain.publicnode.com",
			},
			WebSocketURL: "wss://api.avax.network/ext/bc/C/ws",
			ExplorerURL:  "https://snowtrace.io",
			Tokens: map[string]TokenDescriptor{
				"USDC":  {Symbol: "USDC", Name: "USD Coin", Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Decimals: 6, Verified: true},
				"USDCE": {Symbol: "USDCE", Name: "Bridged USDC", Address: "0xA7D7079b0FEaD91F3e65f86E8915Cb59c1a4C664", Decimals: 6, Verified: true},
				"EURC":  {Symbol: "EURC", Name: "Euro Coin", Address: "0xC891EB4cbdEFf6e073e859e987815Ed1505c2ACD", Decimals: 6, Verified: true},
				"WAVAX": {Symbol: "WAVAX", Name: "Wrapped AVAX", Address: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", Decimals: 18, Verified: true},
			},
			NativePriceUSD: 35,
		},
	}
}

// FiatForToken maps a stablecoin symbol to the fiat currency it tracks.
func FiatForToken(symbol string) string {
	if strings.EqualFold(symbol, "EURC") {
		return "EUR"
	}
	return "USD"
}
