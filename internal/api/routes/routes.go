package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ryzan/ryzan_service/internal/api/handlers"
	"github.com/ryzan/ryzan_service/internal/api/middleware"
	"github.com/ryzan/ryzan_service/internal/infrastructure/database"
	"github.com/ryzan/ryzan_service/internal/infrastructure/di"
	"github.com/ryzan/ryzan_service/pkg/idempotency"
	"github.com/ryzan/ryzan_service/pkg/metrics"
	"github.com/ryzan/ryzan_service/pkg/tracing"
)

// authRequestsPerMinute limits unauthenticated auth attempts per client IP
const authRequestsPerMinute = 10

const adminRole = "admin"

// Version is reported by the health endpoints
var Version = "dev"

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	cfg := container.Config

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(metrics.GinMiddleware())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(map[string]handlers.CheckFunc{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, container.DB) },
		"redis":    container.Redis.Ping,
		"rpc": func(ctx context.Context) error {
			_, err := container.EthClient.BlockNumber(ctx)
			return err
		},
	}, container.Chain.Key, Version, container.ZapLog)

	router.GET("/health", healthHandler.Liveness)
	router.GET("/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation (development only)
	if cfg.Environment != "production" {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	sessions := func(userID uuid.UUID) handlers.TransferSession {
		return container.Sessions.Get(userID)
	}

	authHandlers := handlers.NewAuthHandlers(container.IdentityService, container.ZapLog)
	transferHandlers := handlers.NewTransferHandlers(sessions, container.ZapLog)
	transactionHandlers := handlers.NewTransactionHandlers(container.TransactionService, container.ZapLog)
	recipientHandlers := handlers.NewRecipientHandlers(container.RecipientService, container.ZapLog)
	rateHandlers := handlers.NewRateHandlers(container.RateService, container.ZapLog)
	chainHandlers := handlers.NewChainHandlers(container.Chain)

	var subscriber handlers.EventSubscriber
	if container.Watcher != nil {
		subscriber = container.Watcher
	}
	walletHandlers := handlers.NewWalletHandlers(sessions, subscriber, container.Chain.TokenSymbols(),
		cfg.Server.AllowedOrigins, container.ZapLog)

	authenticated := middleware.Authentication(container.IdentityService)
	userLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerMin, middleware.ByUser)
	authLimiter := middleware.NewRateLimiter(authRequestsPerMinute, middleware.ByClientIP)

	v1 := router.Group("/api/v1")
	{
		// Public
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authLimiter.Limit(), middleware.RequireJSON(), authHandlers.SignUp)
			auth.POST("/signin", authLimiter.Limit(), middleware.RequireJSON(), authHandlers.SignIn)
			auth.POST("/refresh", authLimiter.Limit(), middleware.RequireJSON(), authHandlers.Refresh)
			auth.GET("/session", authenticated, authHandlers.Session)
			auth.POST("/signout", authenticated, authHandlers.SignOut)
		}

		rates := v1.Group("/rates")
		{
			rates.GET("/latest", rateHandlers.Latest)
			rates.GET("/current", rateHandlers.Current)
			rates.GET("/history", rateHandlers.History)
			rates.GET("/change", rateHandlers.Change)
			rates.POST("/convert", middleware.RequireJSON(), rateHandlers.Convert)
		}

		chain := v1.Group("/chain")
		{
			chain.GET("/config", chainHandlers.Config)
			chain.GET("/explorer", chainHandlers.Explorer)
		}

		// Protected
		protected := v1.Group("/")
		protected.Use(authenticated)
		protected.Use(userLimiter.Limit())
		{
			users := protected.Group("/users")
			{
				users.GET("/me", authHandlers.GetMe)
				users.PATCH("/me", middleware.RequireJSON(), authHandlers.UpdateMe)
				users.GET("/resolve", authHandlers.ResolveRecipient)
			}

			wallet := protected.Group("/wallet")
			{
				wallet.POST("/connect", walletHandlers.Connect)
				wallet.POST("/disconnect", walletHandlers.Disconnect)
				wallet.GET("/state", walletHandlers.State)
				wallet.GET("/balances", walletHandlers.Balances)
				wallet.GET("/events", walletHandlers.Events)
			}

			transfers := protected.Group("/transfers")
			{
				transfers.POST("/estimate", middleware.RequireJSON(), transferHandlers.Estimate)
				transfers.POST("", middleware.RequireJSON(),
					idempotency.Middleware(container.Idempotency, container.ZapLog), transferHandlers.Send)
				transfers.POST("/reset-error", transferHandlers.ResetError)
				transfers.POST("/reset-last", transferHandlers.ResetLastTx)
			}

			transactions := protected.Group("/transactions")
			{
				transactions.GET("", transactionHandlers.List)
				transactions.GET("/recent", transactionHandlers.Recent)
				transactions.GET("/stats", transactionHandlers.Stats)
				transactions.GET("/hash/:hash", transactionHandlers.GetByHash)
				transactions.PATCH("/:id/status", middleware.RequireJSON(), transactionHandlers.UpdateStatus)
			}

			recipients := protected.Group("/recipients")
			{
				recipients.POST("", middleware.RequireJSON(), recipientHandlers.Create)
				recipients.GET("", recipientHandlers.List)
				recipients.GET("/:id", recipientHandlers.Get)
				recipients.PUT("/:id", middleware.RequireJSON(), recipientHandlers.Update)
				recipients.DELETE("/:id", recipientHandlers.Delete)
				recipients.POST("/:id/favorite", recipientHandlers.ToggleFavorite)
			}

			if container.Reconciler != nil {
				reconciliationHandlers := handlers.NewReconciliationHandlers(container.Reconciler, container.ZapLog)
				admin := protected.Group("/admin")
				admin.Use(middleware.RequireRole(adminRole))
				{
					admin.POST("/reconciliation/run", reconciliationHandlers.Run)
				}
			}
		}
	}

	return router
}
