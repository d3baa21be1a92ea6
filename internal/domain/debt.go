package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Debt is an amount owed by a party identified by email.
type Debt struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Email       string          `json:"email" db:"email"`
	Subject     string          `json:"subject" db:"subject"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      Status          `json:"status" db:"status"`
	ExternalRef *string         `json:"externalRef" db:"external_ref"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// IsPaid reports whether the debt has settled.
func (d *Debt) IsPaid() bool { return d.Status == StatusPaid }

// Ref returns the settlement reference or "".
func (d *Debt) Ref() string {
	if d.ExternalRef == nil {
		return ""
	}
	return *d.ExternalRef
}

// DebtWithPayments is the admin listing row.
type DebtWithPayments struct {
	Debt
	Payments []PaymentRecord `json:"payments"`
}

// ImportRecord is one validated import row ready for the store.
type ImportRecord struct {
	Name    string
	Email   string
	Subject string
	Amount  decimal.Decimal
}

// UpsertOutcome reports what an import upsert did.
type UpsertOutcome string

const (
	UpsertCreated UpsertOutcome = "created"
	UpsertUpdated UpsertOutcome = "updated"
)

// TransitionOutcome reports what a settle attempt did.
type TransitionOutcome string

const (
	TransitionApplied     TransitionOutcome = "applied"
	TransitionAlreadyPaid TransitionOutcome = "already_paid"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is syntactically acceptable.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
