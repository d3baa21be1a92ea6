package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatusSucceeded labels a confirmed payment record.
const PaymentStatusSucceeded = "succeeded"

// PaymentRecord is an append-only log entry of a confirmed payment.
// ExternalRef is globally unique and doubles as the idempotency key.
type PaymentRecord struct {
	ID          string          `json:"id" db:"id"`
	DebtID      int64           `json:"debtId" db:"debt_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ExternalRef string          `json:"externalRef" db:"external_ref"`
	Status      string          `json:"status" db:"status"`
	PaidAt      time.Time       `json:"paidAt" db:"paid_at"`
}

// SettledEvent is published after a debt transitions to PAID.
type SettledEvent struct {
	EventType   string          `json:"event_type"`
	DebtID      int64           `json:"debt_id"`
	Email       string          `json:"email"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"external_ref"`
	SettledAt   time.Time       `json:"settled_at"`
}

// EventTypeDebtSettled is the SettledEvent type tag.
const EventTypeDebtSettled = "debt.settled"
