package email

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	sent     []*mail.SGMailV3
	response *rest.Response
	err      error
}

func (f *fakeClient) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	return f.response, f.err
}

func TestSendGridMailer_Send(t *testing.T) {
	client := &fakeClient{response: &rest.Response{StatusCode: 202}}
	m, err := NewSendGridMailerWithClient(client, Config{FromEmail: "receipts@ryzan.app", FromName: "Ryzan", ReplyTo: "help@ryzan.app"}, zap.NewNop())
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "ada@example.com", Subject: "Receipt", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	sent := client.sent[0]
	assert.Equal(t, "Receipt", sent.Subject)
	assert.Equal(t, "receipts@ryzan.app", sent.From.Address)
	assert.Equal(t, "help@ryzan.app", sent.ReplyTo.Address)
	require.Len(t, sent.Personalizations, 1)
	assert.Equal(t, "ada@example.com", sent.Personalizations[0].To[0].Address)
}

func TestSendGridMailer_Errors(t *testing.T) {
	cfg := Config{FromEmail: "receipts@ryzan.app"}

	rejected := &fakeClient{response: &rest.Response{StatusCode: 401, Body: "bad key"}}
	m, err := NewSendGridMailerWithClient(rejected, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorContains(t, m.Send(context.Background(), Message{To: "a@b.co"}), "status 401")

	broken := &fakeClient{err: errors.New("dial tcp")}
	m, err = NewSendGridMailerWithClient(broken, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorContains(t, m.Send(context.Background(), Message{To: "a@b.co"}), "dial tcp")

	_, err = NewSendGridMailer(Config{FromEmail: "x@y.z"}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewSendGridMailerWithClient(rejected, Config{}, zap.NewNop())
	assert.Error(t, err)
}
