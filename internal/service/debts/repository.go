package debts

import (
	"context"

	"github.com/ignite/debt-recovery/internal/domain"
)

// Repository is the durable store for debts and their payment records.
//
// Implementations classify failures with apperr: NotFound for missing
// debts, Duplicate for a replayed payment reference, Persistence for
// everything the storage layer could not do.
type Repository interface {
	// UpsertFromImport creates a PENDING debt for an unseen email or
	// refreshes the mutable fields of an existing one without ever
	// downgrading a PAID status.
	UpsertFromImport(ctx context.Context, rec domain.ImportRecord) (domain.UpsertOutcome, *domain.Debt, error)

	// TransitionToPaidIfPending marks the debt PAID with externalRef only
	// if it is currently PENDING.
	TransitionToPaidIfPending(ctx context.Context, debtID int64, externalRef string) (domain.TransitionOutcome, error)

	FindByEmail(ctx context.Context, email string) (*domain.Debt, error)
	FindByID(ctx context.Context, id int64) (*domain.Debt, error)

	// AppendPaymentRecord inserts rec unless its ExternalRef is already
	// recorded, in which case it returns an apperr.Duplicate error.
	AppendPaymentRecord(ctx context.Context, debtID int64, rec *domain.PaymentRecord) error

	// ListPayments returns up to limit records, most recent first.
	ListPayments(ctx context.Context, debtID int64, limit int) ([]domain.PaymentRecord, error)

	List(ctx context.Context, filter ListFilter) ([]domain.Debt, int, error)

	Ping(ctx context.Context) error
	Close() error
}

// SortField names a sortable debt column.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortName      SortField = "name"
	SortEmail     SortField = "email"
	SortAmount    SortField = "amount"
	SortStatus    SortField = "status"
)

// Column returns the storage column for f, defaulting to created_at.
func (f SortField) Column() string {
	switch f {
	case SortUpdatedAt:
		return "updated_at"
	case SortName:
		return "name"
	case SortEmail:
		return "email"
	case SortAmount:
		return "amount"
	case SortStatus:
		return "status"
	default:
		return "created_at"
	}
}

// ListFilter controls the admin listing.
type ListFilter struct {
	Search string        // matches name, email or subject, case-insensitive
	Status domain.Status // empty for any
	SortBy SortField
	Desc   bool
	Limit  int
	Offset int
}
