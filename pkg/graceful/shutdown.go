package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ryzan/ryzan_service/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Shutdowner is a component that must be stopped before the process exits.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc adapts a plain function to Shutdowner.
type ShutdownFunc func(ctx context.Context) error

func (f ShutdownFunc) Shutdown(ctx context.Context) error { return f(ctx) }

type named struct {
	name string
	s    Shutdowner
}

// ShutdownManager stops the HTTP server first, then registered components
// in reverse registration order.
type ShutdownManager struct {
	server      *http.Server
	shutdowners []named
	timeout     time.Duration
	logger      *logger.Logger
}

func NewShutdownManager(server *http.Server, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		timeout: defaultTimeout,
		logger:  logger,
	}
}

func (sm *ShutdownManager) WithTimeout(d time.Duration) *ShutdownManager {
	if d > 0 {
		sm.timeout = d
	}
	return sm
}

func (sm *ShutdownManager) Register(name string, s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, named{name: name, s: s})
}

// WaitForShutdown blocks until SIGINT/SIGTERM or ctx is done, then shuts down.
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		sm.logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	sm.Shutdown()
}

func (sm *ShutdownManager) Shutdown() {
	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for i := len(sm.shutdowners) - 1; i >= 0; i-- {
		n := sm.shutdowners[i]
		if err := n.s.Shutdown(ctx); err != nil {
			sm.logger.Warn("Component shutdown error", "component", n.name, "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
