package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const sendTimeout = 30 * time.Second

// Message is a single outgoing e-mail
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Config holds SendGrid settings
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
	ReplyTo   string
}

// Client is the part of the SendGrid client the mailer uses
type Client interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers messages through the SendGrid v3 API
type SendGridMailer struct {
	client Client
	config Config
	logger *zap.Logger
}

// NewSendGridMailer creates a mailer with the official client
func NewSendGridMailer(config Config, logger *zap.Logger) (*SendGridMailer, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return NewSendGridMailerWithClient(sendgrid.NewSendClient(config.APIKey), config, logger)
}

// NewSendGridMailerWithClient creates a mailer around an existing client
func NewSendGridMailerWithClient(client Client, config Config, logger *zap.Logger) (*SendGridMailer, error) {
	if strings.TrimSpace(config.FromEmail) == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	return &SendGridMailer{client: client, config: config, logger: logger}, nil
}

// Send delivers msg
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	from := mail.NewEmail(m.config.FromName, m.config.FromEmail)
	message := mail.NewSingleEmail(from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.Text, msg.HTML)
	if strings.TrimSpace(m.config.ReplyTo) != "" {
		message.SetReplyTo(mail.NewEmail(m.config.FromName, m.config.ReplyTo))
	}

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		m.logger.Error("Failed to send email",
			zap.String("provider", "sendgrid"),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		m.logger.Error("Email service returned error",
			zap.String("provider", "sendgrid"),
			zap.String("subject", msg.Subject),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d, body: %s", response.StatusCode, response.Body)
	}

	m.logger.Debug("Email sent",
		zap.String("provider", "sendgrid"),
		zap.String("subject", msg.Subject),
		zap.Int("status_code", response.StatusCode))
	return nil
}
