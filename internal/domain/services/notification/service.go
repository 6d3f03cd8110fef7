// Package notification sends transfer receipts to the sender by e-mail.
// Receipts are queued and delivered by a background worker so a slow mail
// provider never delays a transfer response.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/email"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 45 * time.Second
)

// ErrQueueFull is returned when the receipt queue cannot take another message
var ErrQueueFull = errors.New("receipt queue is full")

// ErrStopped is returned after Shutdown
var ErrStopped = errors.New("notification service stopped")

// Mailer delivers one message
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// UserLookup resolves the recipient of a receipt
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

type receipt struct {
	userID uuid.UUID
	record entities.LedgerRecord
}

// Service queues and delivers transfer receipts
type Service struct {
	users  UserLookup
	mailer Mailer
	chain  entities.ChainConfig
	logger *zap.Logger

	queue   chan receipt
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewService creates a notification service and starts its worker
func NewService(users UserLookup, mailer Mailer, chain entities.ChainConfig, queueSize int, logger *zap.Logger) *Service {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &Service{
		users:  users,
		mailer: mailer,
		chain:  chain,
		logger: logger,
		queue:  make(chan receipt, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// TransferCompleted queues a receipt for record
func (s *Service) TransferCompleted(_ context.Context, userID uuid.UUID, record *entities.LedgerRecord) error {
	if record == nil {
		return fmt.Errorf("nil ledger record")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}

	select {
	case s.queue <- receipt{userID: userID, record: *record}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting receipts and waits for the queue to drain
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run() {
	defer s.wg.Done()
	for r := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := s.deliver(ctx, r); err != nil {
			s.logger.Warn("Failed to deliver transfer receipt",
				zap.String("user_id", r.userID.String()),
				zap.String("record_id", r.record.ID.String()),
				zap.Error(err))
		}
		cancel()
	}
}

func (s *Service) deliver(ctx context.Context, r receipt) error {
	user, err := s.users.GetByID(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || user.Email == "" {
		return nil
	}

	msg := s.buildReceipt(user, &r.record)
	return s.mailer.Send(ctx, msg)
}

func (s *Service) buildReceipt(user *entities.User, rec *entities.LedgerRecord) email.Message {
	amount := fmt.Sprintf("%s %s", rec.Amount.String(), rec.Currency)

	recipient := rec.ToAddress
	if rec.RecipientName != nil && *rec.RecipientName != "" {
		recipient = *rec.RecipientName
	}

	received := ""
	if rec.ReceivedAmount != nil && rec.ReceivedCurrency != nil {
		received = fmt.Sprintf("%s %s", rec.ReceivedAmount.StringFixed(2), *rec.ReceivedCurrency)
	}

	explorer := ""
	if rec.TxHash != nil {
		explorer = s.chain.GetExplorerURL(entities.ExplorerTx, *rec.TxHash)
	}
	when := rec.CreatedAt.UTC().Format(time.RFC1123)

	receivedHTML := ""
	receivedText := ""
	if received != "" {
		receivedHTML = fmt.Sprintf(`<p style="margin: 4px 0; color: #333;"><strong>They receive:</strong> %s</p>`, html.EscapeString(received))
		receivedText = "They receive: " + received + "\n"
	}

	htmlContent := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><title>Transfer sent</title></head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8f9fa; padding: 24px; border-radius: 8px; border: 1px solid #e9ecef;">
				<h2 style="color: #333; margin-bottom: 16px;">Your transfer is complete</h2>
				<div style="background-color: white; border-radius: 8px; padding: 16px; margin: 20px 0; border: 1px solid #dee2e6;">
					<p style="margin: 4px 0; color: #333;"><strong>Amount:</strong> %s</p>
					<p style="margin: 4px 0; color: #333;"><strong>To:</strong> %s</p>
					%s
					<p style="margin: 4px 0; color: #333;"><strong>Network:</strong> %s</p>
					<p style="margin: 4px 0; color: #333;"><strong>Time (UTC):</strong> %s</p>
				</div>
				<p><a href="%s">View on explorer</a></p>
			</div>
		</body>
		</html>
	`, html.EscapeString(amount), html.EscapeString(recipient), receivedHTML,
		html.EscapeString(s.chain.Name), when, html.EscapeString(explorer))

	textContent := fmt.Sprintf(`
Your transfer is complete.

Amount: %s
To: %s
%sNetwork: %s
Time (UTC): %s

%s
`, amount, recipient, receivedText, s.chain.Name, when, explorer)

	return email.Message{
		To:      user.Email,
		ToName:  user.FullName(),
		Subject: fmt.Sprintf("You sent %s", amount),
		HTML:    htmlContent,
		Text:    textContent,
	}
}
