package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/debt-recovery/internal/domain"
)

type captureSender struct {
	msgs []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func testDebt() *domain.Debt {
	return &domain.Debt{
		ID:      7,
		Name:    "Jane <Doe>",
		Email:   "jane+1@example.com",
		Subject: "Invoice 42",
		Amount:  decimal.RequireFromString("120.5"),
	}
}

func TestDebtCreated(t *testing.T) {
	s := &captureSender{}
	n := New(s, "https://pay.example.com/", "eur")

	require.NoError(t, n.DebtCreated(context.Background(), testDebt()))
	require.Len(t, s.msgs, 1)

	msg := s.msgs[0]
	assert.Equal(t, "jane+1@example.com", msg.To)
	assert.Equal(t, "New debt registered: Invoice 42", msg.Subject)
	assert.Contains(t, msg.HTML, "https://pay.example.com/debtor/jane+1@example.com")
	assert.Contains(t, msg.HTML, "120.50 EUR")
	assert.Contains(t, msg.HTML, "Jane &lt;Doe&gt;")
	assert.NotContains(t, msg.Text, "<p>")
	assert.Equal(t, "debt_created", msg.Tags["kind"])
	assert.Equal(t, "7", msg.Tags["debt_id"])
}

func TestPaymentConfirmed(t *testing.T) {
	s := &captureSender{}
	n := New(s, "https://pay.example.com", "")

	rec := &domain.PaymentRecord{Amount: decimal.RequireFromString("120.50"), ExternalRef: "pi_123"}
	require.NoError(t, n.PaymentConfirmed(context.Background(), testDebt(), rec))
	require.Len(t, s.msgs, 1)
	assert.Equal(t, "Payment confirmed: Invoice 42", s.msgs[0].Subject)
	assert.Contains(t, s.msgs[0].HTML, "pi_123")
	assert.Contains(t, s.msgs[0].Text, "120.50 EUR")
}

func TestSenderErrorPropagates(t *testing.T) {
	s := &captureSender{err: errors.New("boom")}
	n := New(s, "https://pay.example.com", "EUR")
	assert.Error(t, n.DebtCreated(context.Background(), testDebt()))
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender(t *testing.T) {
	client := &fakeSES{}
	s := NewSESSender(client, "billing@example.com", "Billing")

	err := s.Send(context.Background(), Message{
		To: "a@example.com", Subject: "Hi", HTML: "<p>x</p>", Text: "x",
		Tags: map[string]string{"kind": "k", "debt_id": "1"},
	})
	require.NoError(t, err)

	in := client.in
	require.NotNil(t, in)
	assert.Equal(t, "Billing <billing@example.com>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"a@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Hi", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "x", aws.ToString(in.Content.Simple.Body.Text.Data))
	require.Len(t, in.EmailTags, 2)
	assert.Equal(t, "debt_id", aws.ToString(in.EmailTags[0].Name))

	client.err = errors.New("throttled")
	assert.Error(t, s.Send(context.Background(), Message{To: "a@example.com"}))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), Message{To: "a@example.com"}))
}
