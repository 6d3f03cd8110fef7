package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

func validConfig() *Config {
	return &Config{
		JWT:        JWTConfig{Secret: "secret"},
		Database:   DatabaseConfig{URL: "postgres://localhost/ryzan"},
		Blockchain: BlockchainConfig{ActiveNetwork: entities.NetworkFuji},
	}
}

func TestBlockchainConfig_Network(t *testing.T) {
	t.Run("defaults to fuji", func(t *testing.T) {
		network, err := BlockchainConfig{}.Network()
		require.NoError(t, err)
		assert.Equal(t, entities.FujiChainID, network.ChainID)
		assert.Equal(t, "0xa869", network.ChainIDHex())
		assert.Len(t, network.RPCURLs, 2)
	})

	t.Run("mainnet built in", func(t *testing.T) {
		network, err := BlockchainConfig{ActiveNetwork: "MAINNET"}.Network()
		require.NoError(t, err)
		assert.Equal(t, entities.MainnetChainID, network.ChainID)
		_, ok := network.Token("usdce")
		assert.True(t, ok)
	})

	t.Run("unknown network rejected", func(t *testing.T) {
		_, err := BlockchainConfig{ActiveNetwork: "goerli"}.Network()
		assert.Error(t, err)
	})

	t.Run("token override replaces placeholder", func(t *testing.T) {
		cfg := BlockchainConfig{
			ActiveNetwork: entities.NetworkFuji,
			Networks: map[string]NetworkConfig{
				entities.NetworkFuji: {
					Tokens: map[string]TokenConfig{
						"eurc": {Address: "0x1111111111111111111111111111111111111111"},
					},
				},
			},
		}
		network, err := cfg.Network()
		require.NoError(t, err)

		eurc, ok := network.Token("EURC")
		require.True(t, ok)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", eurc.Address)
		assert.True(t, eurc.Verified)
		assert.Equal(t, uint8(6), eurc.Decimals)

		usdc, ok := network.Token("USDC")
		require.True(t, ok)
		assert.Equal(t, "0x5425890298aed601595a70ab815c96711a31bc65", usdc.Address)
	})

	t.Run("invalid token address fails validation", func(t *testing.T) {
		cfg := BlockchainConfig{
			Networks: map[string]NetworkConfig{
				entities.NetworkFuji: {
					Tokens: map[string]TokenConfig{"USDC": {Address: "0x1234"}},
				},
			},
		}
		_, err := cfg.Network()
		assert.ErrorContains(t, err, "invalid address")
	})

	t.Run("custom network needs chain id", func(t *testing.T) {
		cfg := BlockchainConfig{
			ActiveNetwork: "local",
			Networks: map[string]NetworkConfig{
				"local": {RPCURLs: []string{"http://127.0.0.1:8545"}},
			},
		}
		_, err := cfg.Network()
		assert.ErrorContains(t, err, "chain_id")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT secret"},
		{"rpc provider needs url", func(c *Config) { c.Wallet.Provider = WalletProviderRPC }, "signer_url"},
		{"key provider needs key", func(c *Config) { c.Wallet.Provider = WalletProviderKey }, "private_key"},
		{"unknown provider", func(c *Config) { c.Wallet.Provider = "ledger" }, "unknown wallet provider"},
		{"rpc provider configured", func(c *Config) {
			c.Wallet.Provider = WalletProviderRPC
			c.Wallet.SignerURL = "http://localhost:8550"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
