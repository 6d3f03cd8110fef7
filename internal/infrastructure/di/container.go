package di

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/domain/services/identity"
	"github.com/ryzan/ryzan_service/internal/domain/services/notification"
	"github.com/ryzan/ryzan_service/internal/domain/services/rates"
	"github.com/ryzan/ryzan_service/internal/domain/services/recipient"
	"github.com/ryzan/ryzan_service/internal/domain/services/reconciliation"
	"github.com/ryzan/ryzan_service/internal/domain/services/transaction"
	"github.com/ryzan/ryzan_service/internal/domain/services/transfer"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/email"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/frankfurter"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
	"github.com/ryzan/ryzan_service/internal/infrastructure/cache"
	"github.com/ryzan/ryzan_service/internal/infrastructure/config"
	"github.com/ryzan/ryzan_service/internal/infrastructure/repositories"
	"github.com/ryzan/ryzan_service/pkg/auth"
	"github.com/ryzan/ryzan_service/pkg/idempotency"
	"github.com/ryzan/ryzan_service/pkg/logger"
)

const (
	sessionIdleTTL  = 30 * time.Minute
	idempotencyTTL  = 24 * time.Hour
	receiptQueueLen = 256
)

const noWalletReason = "no wallet detected, install a wallet or configure a signer"

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger
	DB     *sqlx.DB
	Redis  cache.RedisClient
	Chain  entities.ChainConfig

	// RPC connections
	EthClient    *ethclient.Client
	StreamClient *ethclient.Client

	// Repositories
	UserRepo      *repositories.UserRepository
	LedgerRepo    *repositories.LedgerRepository
	RecipientRepo *repositories.RecipientRepository

	// Auth
	Issuer      *auth.Issuer
	TokenStore  *auth.TokenBlacklist
	Idempotency idempotency.Store

	// Domain services
	IdentityService     *identity.Service
	RateService         *rates.Service
	RecipientService    *recipient.Service
	TransactionService  *transaction.Service
	NotificationService *notification.Service
	Sessions            *transfer.Sessions
	Watcher             *transfer.Watcher
	Reconciler          *reconciliation.Scheduler

	detector wallet.Detector
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config, db *sqlx.DB, redis cache.RedisClient, log *logger.Logger) (*Container, error) {
	chain, err := cfg.Blockchain.Network()
	if err != nil {
		return nil, fmt.Errorf("resolve network: %w", err)
	}
	for _, symbol := range chain.TokenSymbols() {
		if token, _ := chain.Token(symbol); !token.Verified {
			log.Warn("Token address is not verified for this network", "network", chain.Key, "token", symbol, "address", token.Address)
		}
	}

	c := &Container{
		Config: cfg,
		Logger: log,
		ZapLog: log.Zap(),
		DB:     db,
		Redis:  redis,
		Chain:  chain,
	}

	if err := c.initializeChain(ctx); err != nil {
		return nil, err
	}
	c.initializeRepositories()
	if err := c.initializeDomainServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initializeChain(ctx context.Context) error {
	client, err := evm.Dial(ctx, c.Chain.RPCURLs, c.Chain.ChainID, c.ZapLog)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.Chain.Name, err)
	}
	c.EthClient = client

	if c.Chain.WebSocketURL != "" {
		stream, err := evm.Dial(ctx, []string{c.Chain.WebSocketURL}, c.Chain.ChainID, c.ZapLog)
		if err != nil {
			c.Logger.Warn("Websocket RPC unavailable, transfer event stream disabled", "error", err)
		} else {
			c.StreamClient = stream
		}
	}

	detector, err := c.buildDetector()
	if err != nil {
		return err
	}
	c.detector = detector
	return nil
}

func (c *Container) buildDetector() (wallet.Detector, error) {
	switch c.Config.Wallet.Provider {
	case config.WalletProviderRPC:
		return wallet.NewRPCDetector(c.Config.Wallet.SignerURL, c.ZapLog), nil
	case config.WalletProviderKey:
		kp, err := wallet.NewKeyProvider(c.Config.Wallet.PrivateKey, c.Chain.ChainID, c.EthClient, c.ZapLog)
		if err != nil {
			return nil, fmt.Errorf("wallet key provider: %w", err)
		}
		c.Logger.Info("Using in-process signing key", "address", kp.Address().Hex())
		return wallet.Static(wallet.Available(kp, wallet.KindKey)), nil
	default:
		c.Logger.Warn("No wallet provider configured, transfers are unavailable")
		return wallet.Static(wallet.Unavailable(noWalletReason)), nil
	}
}

func (c *Container) initializeRepositories() {
	c.UserRepo = repositories.NewUserRepository(c.DB, c.ZapLog)
	c.LedgerRepo = repositories.NewLedgerRepository(c.DB, c.ZapLog)
	c.RecipientRepo = repositories.NewRecipientRepository(c.DB)
}

func (c *Container) initializeDomainServices() error {
	cfg := c.Config

	c.RateService = rates.NewService(
		frankfurter.NewClient(frankfurter.Config{
			BaseURL:           cfg.Rates.BaseURL,
			Timeout:           cfg.Rates.Timeout,
			RequestsPerSecond: cfg.Rates.RequestsPerSecond,
		}, c.ZapLog),
		c.Redis,
		cfg.Rates.CacheTTL,
		c.Logger,
	)
	c.RecipientService = recipient.NewService(c.RecipientRepo, c.ZapLog)
	c.TransactionService = transaction.NewService(c.LedgerRepo, c.ZapLog)
	c.Idempotency = idempotency.NewRedisStore(c.Redis, idempotencyTTL)

	var notifier transfer.ReceiptNotifier
	if cfg.Email.Provider == "sendgrid" {
		mailer, err := email.NewSendGridMailer(email.Config{
			APIKey:    cfg.Email.APIKey,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
		}, c.ZapLog)
		if err != nil {
			return fmt.Errorf("email: %w", err)
		}
		c.NotificationService = notification.NewService(c.UserRepo, mailer, c.Chain, receiptQueueLen, c.ZapLog)
		notifier = c.NotificationService
	}

	reader := transfer.NewReader(c.EthClient, c.Chain, c.Logger)
	engine := transfer.NewEngine(c.EthClient, c.Chain, c.RateService, c.engineConfig(), c.Logger)
	orchestrator := transfer.NewOrchestrator(c.TransactionService, c.RateService, notifier, c.Chain, c.Logger)
	connector := transfer.NewConnector(c.detector, c.Chain, c.Logger)

	c.Sessions = transfer.NewSessions(func(userID uuid.UUID) *transfer.Facade {
		return transfer.NewFacade(userID, connector, reader, engine, orchestrator, c.Logger)
	}, sessionIdleTTL, c.Logger)

	if c.StreamClient != nil {
		c.Watcher = transfer.NewWatcher(c.StreamClient, reader, c.Chain, c.Logger)
	}

	c.Issuer = auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	var tokens identity.TokenStore
	if cfg.Security.EnableTokenBlacklist {
		c.TokenStore = auth.NewTokenBlacklist(c.Redis.Client())
		tokens = c.TokenStore
	}
	c.IdentityService = identity.NewService(c.UserRepo, c.Issuer, tokens, c.Sessions, identity.Config{
		BcryptCost:        cfg.Security.BcryptCost,
		PasswordMinLength: cfg.Security.PasswordMinLength,
	}, c.ZapLog)

	if cfg.Reconciliation.Enabled {
		svc := reconciliation.NewService(c.LedgerRepo, c.EthClient, reconciliation.Config{
			Lookback:    cfg.Reconciliation.Lookback,
			GracePeriod: cfg.Reconciliation.GracePeriod,
			BatchSize:   cfg.Reconciliation.BatchSize,
		}, c.Logger)
		c.Reconciler = reconciliation.NewScheduler(svc, cfg.Reconciliation.Schedule, c.Logger)
	}

	return nil
}

func (c *Container) engineConfig() transfer.EngineConfig {
	ec := transfer.DefaultEngineConfig()
	if c.Config.Wallet.ConfirmationTimeout > 0 {
		ec.ConfirmationTimeout = c.Config.Wallet.ConfirmationTimeout
	}
	if c.Config.Wallet.PollInterval > 0 {
		ec.PollInterval = c.Config.Wallet.PollInterval
	}
	return ec
}

// Close releases RPC connections
func (c *Container) Close() {
	if c.StreamClient != nil {
		c.StreamClient.Close()
	}
	if c.EthClient != nil {
		c.EthClient.Close()
	}
	if d, ok := c.detector.(*wallet.RPCDetector); ok {
		_ = d.Shutdown(context.Background())
	}
}
