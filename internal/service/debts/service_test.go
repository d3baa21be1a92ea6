package debts_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/debts"
	"github.com/ignite/debt-recovery/internal/service/debts/debtstest"
)

func seed(repo *debtstest.Repo, name, email string, amount string, status domain.Status) int64 {
	return repo.Seed(domain.Debt{
		Name: name, Email: email, Subject: "Invoice", Amount: decimal.RequireFromString(amount), Status: status,
	})
}

func TestGet_ByEmailNormalizes(t *testing.T) {
	repo := debtstest.New()
	id := seed(repo, "Jane", "jane@example.com", "10", domain.StatusPending)
	svc := debts.NewService(repo)

	d, err := svc.Get(context.Background(), debts.Lookup{Email: "  JANE@example.com "})
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)
}

func TestGet_ByIDWins(t *testing.T) {
	repo := debtstest.New()
	id := seed(repo, "Jane", "jane@example.com", "10", domain.StatusPending)
	seed(repo, "Bob", "bob@example.com", "10", domain.StatusPending)
	svc := debts.NewService(repo)

	d, err := svc.Get(context.Background(), debts.Lookup{ID: id, Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", d.Email)
}

func TestGet_Errors(t *testing.T) {
	svc := debts.NewService(debtstest.New())
	ctx := context.Background()

	_, err := svc.Get(ctx, debts.Lookup{})
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = svc.Get(ctx, debts.Lookup{Email: "nope"})
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = svc.Get(ctx, debts.Lookup{Email: "ghost@example.com"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestListWithPayments_Pagination(t *testing.T) {
	repo := debtstest.New()
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		seed(repo, "N", e, "5", domain.StatusPending)
	}
	paid := seed(repo, "Paid", "paid@example.com", "7", domain.StatusPaid)
	require.NoError(t, repo.AppendPaymentRecord(context.Background(), paid, &domain.PaymentRecord{
		ExternalRef: "pi_1", Amount: decimal.NewFromInt(7), Status: domain.PaymentStatusSucceeded,
	}))
	svc := debts.NewService(repo)

	p, err := svc.ListWithPayments(context.Background(), debts.ListFilter{Limit: 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 2, p.TotalPages)
	require.Len(t, p.Debts, 1)
	assert.Equal(t, paid, p.Debts[0].ID)
	require.Len(t, p.Debts[0].Payments, 1)
	assert.Equal(t, "pi_1", p.Debts[0].Payments[0].ExternalRef)
}

func TestListWithPayments_StatusFilter(t *testing.T) {
	repo := debtstest.New()
	seed(repo, "A", "a@example.com", "5", domain.StatusPending)
	seed(repo, "B", "b@example.com", "5", domain.StatusPaid)
	svc := debts.NewService(repo)

	p, err := svc.ListWithPayments(context.Background(), debts.ListFilter{Status: domain.StatusPaid}, 1)
	require.NoError(t, err)
	require.Len(t, p.Debts, 1)
	assert.Equal(t, "b@example.com", p.Debts[0].Email)
	assert.NotNil(t, p.Debts[0].Payments)
	assert.Equal(t, 10, p.Limit)

	_, err = svc.ListWithPayments(context.Background(), debts.ListFilter{Status: "LATE"}, 1)
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestSortField_Column(t *testing.T) {
	assert.Equal(t, "amount", debts.SortAmount.Column())
	assert.Equal(t, "created_at", debts.SortField("drop table").Column())
}
