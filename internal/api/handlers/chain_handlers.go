package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

// ChainConfigResponse describes the active network to clients
type ChainConfigResponse struct {
	Chain          entities.ChainConfig    `json:"chain"`
	ChainIDHex     string                  `json:"chain_id_hex"`
	AddChainParams entities.AddChainParams `json:"add_chain_params"`
	Tokens         []string                `json:"token_symbols"`
}

// ChainHandlers serves the active network configuration
type ChainHandlers struct {
	chain entities.ChainConfig
}

// NewChainHandlers creates a new instance of ChainHandlers
func NewChainHandlers(chain entities.ChainConfig) *ChainHandlers {
	return &ChainHandlers{chain: chain}
}

// Config returns the active network, its tokens and the wallet_addEthereumChain payload
// @Summary Chain configuration
// @Tags chain
// @Produce json
// @Success 200 {object} ChainConfigResponse
// @Router /api/v1/chain/config [get]
func (h *ChainHandlers) Config(c *gin.Context) {
	c.JSON(http.StatusOK, ChainConfigResponse{
		Chain:          h.chain,
		ChainIDHex:     h.chain.ChainIDHex(),
		AddChainParams: h.chain.AddChainParams(),
		Tokens:         h.chain.TokenSymbols(),
	})
}

// Explorer builds a block-explorer link
// @Summary Explorer link
// @Tags chain
// @Produce json
// @Param type query string false "tx or address" default(tx)
// @Param hash query string true "Transaction hash or address"
// @Success 200 {object} map[string]string
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/v1/chain/explorer [get]
func (h *ChainHandlers) Explorer(c *gin.Context) {
	hash := c.Query("hash")
	if hash == "" {
		SendBadRequest(c, ErrCodeValidationError, "hash is required")
		return
	}
	kind := c.DefaultQuery("type", entities.ExplorerTx)
	if kind != entities.ExplorerTx && kind != entities.ExplorerAddress {
		SendBadRequest(c, ErrCodeValidationError, "type must be tx or address")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.chain.GetExplorerURL(kind, hash)})
}
