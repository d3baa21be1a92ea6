// Package notify renders and sends the debtor emails: the notice for a
// newly imported debt and the receipt for a settled one.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders debtor emails with Liquid templates.
type Notifier struct {
	sender   Sender
	engine   *liquid.Engine
	baseURL  string
	currency string

	mu    sync.Mutex
	cache map[string]*liquid.Template
}

// New creates a notifier. baseURL is the public site root used for links.
func New(sender Sender, baseURL, currency string) *Notifier {
	if currency == "" {
		currency = "EUR"
	}
	return &Notifier{
		sender:   sender,
		engine:   liquid.NewEngine(),
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: strings.ToUpper(currency),
		cache:    make(map[string]*liquid.Template),
	}
}

// DebtCreated sends the new-debt notice with a link to the debtor page.
func (n *Notifier) DebtCreated(ctx context.Context, d *domain.Debt) error {
	bindings := map[string]any{
		"name":       d.Name,
		"subject":    d.Subject,
		"amount":     d.Amount.StringFixed(2),
		"currency":   n.currency,
		"debtor_url": n.baseURL + "/debtor/" + url.PathEscape(d.Email),
	}
	return n.send(ctx, d.Email, debtCreatedSubject, debtCreatedHTML, bindings, map[string]string{
		"kind": "debt_created", "debt_id": fmt.Sprint(d.ID),
	})
}

// PaymentConfirmed sends the payment receipt.
func (n *Notifier) PaymentConfirmed(ctx context.Context, d *domain.Debt, rec *domain.PaymentRecord) error {
	bindings := map[string]any{
		"name":       d.Name,
		"subject":    d.Subject,
		"amount":     rec.Amount.StringFixed(2),
		"currency":   n.currency,
		"payment_id": rec.ExternalRef,
	}
	return n.send(ctx, d.Email, paymentConfirmedSubject, paymentConfirmedHTML, bindings, map[string]string{
		"kind": "payment_confirmed", "debt_id": fmt.Sprint(d.ID),
	})
}

func (n *Notifier) send(ctx context.Context, to, subjectTpl, htmlTpl string, b map[string]any, tags map[string]string) error {
	subject, err := n.render(subjectTpl, b)
	if err != nil {
		return err
	}
	html, err := n.render(htmlTpl, b)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{To: to, Subject: subject, HTML: html, Text: htmlToText(html), Tags: tags})
}

func (n *Notifier) render(src string, b map[string]any) (string, error) {
	n.mu.Lock()
	tpl, ok := n.cache[src]
	if !ok {
		var err error
		tpl, err = n.engine.ParseString(src)
		if err != nil {
			n.mu.Unlock()
			return "", fmt.Errorf("parse template: %w", err)
		}
		n.cache[src] = tpl
	}
	n.mu.Unlock()

	out, err := tpl.RenderString(b)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

var (
	tagRegex   = regexp.MustCompile(`<[^>]*>`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

func htmlToText(html string) string {
	text := tagRegex.ReplaceAllString(html, "")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// LogSender logs messages instead of sending them. It stands in when no
// mail transport is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	logger.Info("email not sent (no transport configured)", "to_email", msg.To, "subject", msg.Subject)
	return nil
}
