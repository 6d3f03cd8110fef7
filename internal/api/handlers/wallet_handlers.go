package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	eventBuffer    = 32
)

// EventSubscriber streams ERC-20 transfers sent by a wallet
type EventSubscriber interface {
	Subscribe(ctx context.Context, symbol string, owner common.Address, fn func(entities.TransferEvent)) (stop func(), err error)
}

// StreamMessage is one frame of the wallet event stream
type StreamMessage struct {
	Type      string                  `json:"type"`
	Event     *entities.TransferEvent `json:"event,omitempty"`
	Address   string                  `json:"address,omitempty"`
	Tokens    []string                `json:"tokens,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

// WalletHandlers serves wallet session endpoints
type WalletHandlers struct {
	sessions   SessionLookup
	subscriber EventSubscriber
	tokens     []string
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewWalletHandlers creates a new instance of WalletHandlers. subscriber may
// be nil when no websocket RPC endpoint is configured.
func NewWalletHandlers(sessions SessionLookup, subscriber EventSubscriber, tokens []string, allowedOrigins []string, logger *zap.Logger) *WalletHandlers {
	return &WalletHandlers{
		sessions:   sessions,
		subscriber: subscriber,
		tokens:     tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || lo.Contains(allowedOrigins, "*") || lo.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// Connect initializes the user's wallet session
// @Summary Connect wallet
// @Description Detects the wallet provider, requests accounts and switches to the configured chain
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} transfer.InitResult
// @Failure 409 {object} transfer.InitResult
// @Failure 503 {object} transfer.InitResult
// @Router /api/v1/wallet/connect [post]
func (h *WalletHandlers) Connect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	session := h.sessions(userID)
	if c.Query("auto") == "true" {
		connected, err := session.AutoConnect(c.Request.Context())
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"connected": connected, "state": session.State()})
		return
	}

	res := session.Connect(c.Request.Context())
	if !res.Success {
		c.JSON(StatusForCode(res.ErrorCode), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Disconnect tears down the user's wallet session
// @Summary Disconnect wallet
// @Tags wallet
// @Security BearerAuth
// @Success 204
// @Router /api/v1/wallet/disconnect [post]
func (h *WalletHandlers) Disconnect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	h.sessions(userID).Disconnect()
	c.Status(http.StatusNoContent)
}

// State returns a snapshot of the user's transfer session
// @Summary Wallet session state
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} transfer.State
// @Router /api/v1/wallet/state [get]
func (h *WalletHandlers) State(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessions(userID).State())
}

// Balances returns native and token balances of the connected wallet
// @Summary Wallet balances
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entities.Balances
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/wallet/balances [get]
func (h *WalletHandlers) Balances(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	balances, err := h.sessions(userID).Balances(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// Events streams outgoing token transfers of the connected wallet
// @Summary Wallet transfer events
// @Description Upgrades to a websocket. Browsers may pass the token in the access_token query parameter.
// @Tags wallet
// @Security BearerAuth
// @Success 101
// @Failure 409 {object} entities.ErrorResponse
// @Failure 503 {object} entities.ErrorResponse
// @Router /api/v1/wallet/events [get]
func (h *WalletHandlers) Events(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.subscriber == nil {
		respondError(c, h.logger, apperrors.ServiceUnavailableError("event stream", nil))
		return
	}
	state := h.sessions(userID).State()
	if !state.IsInitialized || !common.IsHexAddress(state.WalletAddress) {
		respondError(c, h.logger, apperrors.NotInitializedError())
		return
	}
	owner := common.HexToAddress(state.WalletAddress)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	events := make(chan entities.TransferEvent, eventBuffer)
	var stops []func()
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	for _, symbol := range h.tokens {
		stop, err := h.subscriber.Subscribe(ctx, symbol, owner, func(ev entities.TransferEvent) {
			select {
			case events <- ev:
			default:
				h.logger.Warn("Dropping transfer event for slow client", zap.String("tx_hash", ev.TxHash))
			}
		})
		if err != nil {
			h.logger.Warn("Failed to subscribe to transfers", zap.String("token", symbol), zap.Error(err))
			continue
		}
		stops = append(stops, stop)
	}

	log := h.logger.With(zap.String("user_id", userID.String()), zap.String("wallet", owner.Hex()))
	log.Info("Event stream opened", zap.Int("subscriptions", len(stops)))

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, events, StreamMessage{
		Type:      "subscribed",
		Address:   owner.Hex(),
		Tokens:    h.tokens,
		Timestamp: time.Now().UnixMilli(),
	})
	log.Info("Event stream closed")
}

// readPump drains client frames so control messages are processed. It
// cancels the stream when the peer goes away.
func (h *WalletHandlers) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

func (h *WalletHandlers) writePump(ctx context.Context, conn *websocket.Conn, events <-chan entities.TransferEvent, hello StreamMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg StreamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg) == nil
	}
	if !write(hello) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev := <-events:
			if !write(StreamMessage{Type: "transfer", Event: &ev, Timestamp: time.Now().UnixMilli()}) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
