package confirmation

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

// Notifier sends the payment receipt.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, d *domain.Debt, rec *domain.PaymentRecord) error
}

// Publisher fans a settlement out to downstream consumers.
type Publisher interface {
	PublishSettled(ctx context.Context, ev domain.SettledEvent) error
}

// Processor verifies and applies payment events.
type Processor struct {
	repo      debts.Repository
	verifier  Verifier
	ledger    Ledger
	notifier  Notifier
	publisher Publisher
	now       func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

func WithLedger(l Ledger) Option        { return func(p *Processor) { p.ledger = l } }
func WithNotifier(n Notifier) Option    { return func(p *Processor) { p.notifier = n } }
func WithPublisher(pb Publisher) Option { return func(p *Processor) { p.publisher = pb } }

// NewProcessor creates a processor.
func NewProcessor(repo debts.Repository, verifier Verifier, opts ...Option) *Processor {
	p := &Processor{repo: repo, verifier: verifier, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process verifies payload and applies it. Errors are classified:
// Authentication and Validation are permanent, everything else should be
// retried by the sender.
func (p *Processor) Process(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	const op = "confirmation.Process"
	if strings.TrimSpace(signature) == "" {
		return "", apperr.E(apperr.Authentication, op, "missing signature header")
	}
	ev, err := p.verifier.Verify(payload, signature)
	if err != nil {
		return "", err
	}

	if p.ledger != nil {
		seen, err := p.ledger.Seen(ctx, ev.ID)
		if err != nil {
			logger.Warn("event ledger lookup failed", "event_id", ev.ID, "error", err)
		} else if seen {
			logger.Debug("event already applied", "event_id", ev.ID, "type", ev.Type)
			return OutcomeIgnored, nil
		}
	}

	var outcome Outcome
	switch ev.Type {
	case TypeCheckoutCompleted:
		outcome, err = p.checkoutCompleted(ctx, ev)
	case TypePaymentSucceeded:
		outcome, err = p.paymentSucceeded(ctx, ev)
	default:
		logger.Debug("ignoring event type", "event_id", ev.ID, "type", ev.Type)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if outcome == OutcomeApplied && p.ledger != nil {
		if err := p.ledger.Mark(ctx, ev.ID); err != nil {
			logger.Warn("event ledger mark failed", "event_id", ev.ID, "error", err)
		}
	}
	return outcome, nil
}

func (p *Processor) checkoutCompleted(ctx context.Context, ev *Event) (Outcome, error) {
	const op = "confirmation.checkoutCompleted"
	raw, ok := ev.Metadata["debtId"]
	if !ok || strings.TrimSpace(raw) == "" {
		return "", apperr.E(apperr.Validation, op, "debt id missing from session metadata")
	}
	debtID, err := cast.ToInt64E(strings.TrimSpace(raw))
	if err != nil || debtID <= 0 {
		return "", apperr.Errorf(apperr.Validation, op, "invalid debt id %q in session metadata", raw)
	}
	if ev.PaymentStatus != PaymentStatusPaid {
		logger.Info("checkout completed without payment", "event_id", ev.ID, "debt_id", debtID, "payment_status", ev.PaymentStatus)
		return OutcomeIgnored, nil
	}

	d, err := p.repo.FindByID(ctx, debtID)
	if apperr.Is(err, apperr.NotFound) {
		logger.Warn("payment for unknown debt", "event_id", ev.ID, "debt_id", debtID, "reference", ev.Reference)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", retryable(op, err)
	}
	return p.settle(ctx, ev, d)
}

func (p *Processor) paymentSucceeded(ctx context.Context, ev *Event) (Outcome, error) {
	const op = "confirmation.paymentSucceeded"
	var (
		d   *domain.Debt
		err error
	)
	if id, cerr := cast.ToInt64E(strings.TrimSpace(ev.Metadata["debtId"])); cerr == nil && id > 0 {
		d, err = p.repo.FindByID(ctx, id)
	} else {
		email := domain.NormalizeEmail(ev.Metadata["email"])
		if email == "" {
			email = domain.NormalizeEmail(ev.CustomerEmail)
		}
		if email == "" {
			logger.Info("payment intent without correlation metadata", "event_id", ev.ID, "reference", ev.Reference)
			return OutcomeIgnored, nil
		}
		d, err = p.repo.FindByEmail(ctx, email)
	}
	if apperr.Is(err, apperr.NotFound) {
		logger.Warn("payment intent for unknown debt", "event_id", ev.ID, "reference", ev.Reference)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", retryable(op, err)
	}
	if d.IsPaid() && d.Ref() != ev.Reference {
		return OutcomeIgnored, nil
	}
	return p.settle(ctx, ev, d)
}

// settle transitions d and records the payment. When d is already paid by
// this very reference the record append is retried, which repairs a crash
// between the two writes; Duplicate means it was already there.
func (p *Processor) settle(ctx context.Context, ev *Event, d *domain.Debt) (Outcome, error) {
	const op = "confirmation.settle"
	if ev.Reference == "" {
		return "", apperr.E(apperr.Validation, op, "event carries no payment reference")
	}

	outcome, err := p.repo.TransitionToPaidIfPending(ctx, d.ID, ev.Reference)
	if apperr.Is(err, apperr.NotFound) {
		logger.Warn("debt vanished before settlement", "event_id", ev.ID, "debt_id", d.ID)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", retryable(op, err)
	}

	if outcome == domain.TransitionAlreadyPaid {
		current, err := p.repo.FindByID(ctx, d.ID)
		if err != nil {
			return "", retryable(op, err)
		}
		if current.Ref() != ev.Reference {
			logger.Info("debt already settled by another payment", "event_id", ev.ID, "debt_id", d.ID)
			return OutcomeIgnored, nil
		}
		d = current
	}

	rec := &domain.PaymentRecord{
		Amount:      d.Amount,
		ExternalRef: ev.Reference,
		Status:      domain.PaymentStatusSucceeded,
		PaidAt:      p.paidAt(ev),
	}
	err = p.repo.AppendPaymentRecord(ctx, d.ID, rec)
	switch {
	case apperr.Is(err, apperr.Duplicate) && outcome == domain.TransitionAlreadyPaid:
		logger.Debug("payment already recorded", "event_id", ev.ID, "debt_id", d.ID)
		return OutcomeIgnored, nil
	case apperr.Is(err, apperr.Duplicate):
		// a concurrent delivery recorded it and owns the side effects
		logger.Debug("payment recorded concurrently", "event_id", ev.ID, "debt_id", d.ID)
		return OutcomeApplied, nil
	case err != nil:
		return "", retryable(op, err)
	}

	if outcome == domain.TransitionAlreadyPaid {
		logger.Info("payment record repaired", "event_id", ev.ID, "debt_id", d.ID, "reference", ev.Reference)
	} else {
		logger.Info("debt settled", "event_id", ev.ID, "debt_id", d.ID, "reference", ev.Reference, "email", d.Email)
	}
	p.afterSettle(ctx, d, rec)
	return OutcomeApplied, nil
}

// afterSettle runs the best-effort side effects of a settlement.
func (p *Processor) afterSettle(ctx context.Context, d *domain.Debt, rec *domain.PaymentRecord) {
	settled := *d
	settled.Status = domain.StatusPaid
	ref := rec.ExternalRef
	settled.ExternalRef = &ref

	if p.notifier != nil {
		if err := p.notifier.PaymentConfirmed(ctx, &settled, rec); err != nil {
			logger.Warn("payment receipt failed", "debt_id", d.ID, "email", d.Email, "error", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishSettled(ctx, domain.SettledEvent{
			EventType:   domain.EventTypeDebtSettled,
			DebtID:      d.ID,
			Email:       d.Email,
			Amount:      rec.Amount,
			ExternalRef: rec.ExternalRef,
			SettledAt:   rec.PaidAt,
		}); err != nil {
			logger.Warn("settled event publish failed", "debt_id", d.ID, "error", err)
		}
	}
}

func (p *Processor) paidAt(ev *Event) time.Time {
	if !ev.Created.IsZero() {
		return ev.Created.UTC()
	}
	return p.now().UTC()
}

// retryable marks a store failure as Persistence so the sender redelivers.
func retryable(op string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.Persistence:
		return err
	default:
		return apperr.Wrap(apperr.Persistence, op, err, "could not apply payment")
	}
}
