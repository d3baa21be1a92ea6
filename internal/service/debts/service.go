package debts

import (
	"context"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// RecentPayments is how many payment records the admin listing carries.
	RecentPayments = 5
)

// Service provides read access to debts.
type Service struct {
	repo Repository
}

// NewService creates a new debts service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup identifies a debt by id or email. ID wins when both are set.
type Lookup struct {
	ID    int64
	Email string
}

// Get resolves a debt by id or normalized email.
func (s *Service) Get(ctx context.Context, l Lookup) (*domain.Debt, error) {
	const op = "debts.Get"
	if l.ID > 0 {
		return s.repo.FindByID(ctx, l.ID)
	}
	email := domain.NormalizeEmail(l.Email)
	if email == "" {
		return nil, apperr.E(apperr.Validation, op, "debt id or email is required")
	}
	if !domain.ValidEmail(email) {
		return nil, apperr.E(apperr.Validation, op, "invalid email address")
	}
	return s.repo.FindByEmail(ctx, email)
}

// Page is one page of the admin listing.
type Page struct {
	Debts      []domain.DebtWithPayments `json:"debts"`
	Total      int                       `json:"total"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	TotalPages int                       `json:"totalPages"`
}

// ListWithPayments returns a page of debts, each with its most recent
// payment records. page is 1-based.
func (s *Service) ListWithPayments(ctx context.Context, filter ListFilter, page int) (*Page, error) {
	const op = "debts.ListWithPayments"
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Errorf(apperr.Validation, op, "unknown status %q", filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	filter.Offset = (page - 1) * filter.Limit

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DebtWithPayments, 0, len(items))
	for _, d := range items {
		payments, err := s.repo.ListPayments(ctx, d.ID, RecentPayments)
		if err != nil {
			return nil, err
		}
		if payments == nil {
			payments = []domain.PaymentRecord{}
		}
		out = append(out, domain.DebtWithPayments{Debt: d, Payments: payments})
	}

	return &Page{
		Debts:      out,
		Total:      total,
		Page:       page,
		Limit:      filter.Limit,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}
