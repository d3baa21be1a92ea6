package payment

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

// Metadata keys attached to every checkout session and its payment intent.
const (
	MetaDebtID      = "debtId"
	MetaEmail       = "email"
	MetaName        = "name"
	MetaDebtSubject = "debtSubject"
)

// IntentRequest identifies the debt to pay. DebtID wins over Email.
type IntentRequest struct {
	DebtID int64  `json:"debtId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Intent is a created checkout session.
type Intent struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// Config holds the checkout presentation settings.
type Config struct {
	BaseURL  string // public site root used for return URLs
	Currency string
}

// Service creates payment intents.
type Service struct {
	repo    debts.Repository
	gateway Gateway
	cfg     Config
}

// NewService creates a payment service.
func NewService(repo debts.Repository, gateway Gateway, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{repo: repo, gateway: gateway, cfg: cfg}
}

// CreateIntent opens a checkout session for a PENDING debt.
func (s *Service) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	const op = "payment.CreateIntent"

	var (
		d   *domain.Debt
		err error
	)
	switch {
	case req.DebtID > 0:
		d, err = s.repo.FindByID(ctx, req.DebtID)
	case strings.TrimSpace(req.Email) != "":
		d, err = s.repo.FindByEmail(ctx, domain.NormalizeEmail(req.Email))
	default:
		return nil, apperr.E(apperr.Validation, op, "debt id or email is required")
	}
	if err != nil {
		return nil, err
	}
	if d.IsPaid() {
		return nil, apperr.E(apperr.Conflict, op, "debt is already settled")
	}

	cents := domain.ToMinorUnits(d.Amount)
	if cents <= 0 {
		return nil, apperr.E(apperr.Validation, op, "debt amount is too small to charge")
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		AmountMinor:   cents,
		Currency:      s.cfg.Currency,
		ProductName:   d.Subject,
		Description:   "Payment of debt for " + d.Name,
		CustomerEmail: d.Email,
		SuccessURL:    s.cfg.BaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.BaseURL + "/debtor/" + url.PathEscape(d.Email) + "?canceled=true",
		Metadata: map[string]string{
			MetaDebtID:      strconv.FormatInt(d.ID, 10),
			MetaEmail:       d.Email,
			MetaName:        d.Name,
			MetaDebtSubject: d.Subject,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("checkout session created", "debt_id", d.ID, "session_id", sess.ID, "amount_minor", cents)
	return &Intent{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}
