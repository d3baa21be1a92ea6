package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "debts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func importRec(email, amount string) domain.ImportRecord {
	return domain.ImportRecord{Name: "Jane Doe", Email: email, Subject: "Invoice", Amount: decimal.RequireFromString(amount)}
}

func TestUpsertFromImport_CreateThenUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	outcome, d, err := s.UpsertFromImport(ctx, importRec("Jane@Example.com", "100.50"))
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertCreated, outcome)
	assert.Equal(t, "jane@example.com", d.Email)
	assert.Equal(t, domain.StatusPending, d.Status)

	rec := importRec("jane@example.com", "80")
	rec.Subject = "Invoice 2"
	outcome, d2, err := s.UpsertFromImport(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertUpdated, outcome)
	assert.Equal(t, d.ID, d2.ID)
	assert.Equal(t, "Invoice 2", d2.Subject)
	assert.True(t, decimal.NewFromInt(80).Equal(d2.Amount))
	assert.False(t, d2.UpdatedAt.Before(d.UpdatedAt))
}

func TestUpsertFromImport_NeverDowngradesPaid(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, d, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "100"))
	require.NoError(t, err)
	outcome, err := s.TransitionToPaidIfPending(ctx, d.ID, "pi_1")
	require.NoError(t, err)
	require.Equal(t, domain.TransitionApplied, outcome)

	_, d2, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "150"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, d2.Status)
	assert.Equal(t, "pi_1", d2.Ref())
	assert.True(t, decimal.NewFromInt(150).Equal(d2.Amount))
}

func TestUpdatedAt_NeverMovesBackwards(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	_, d, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "10"))
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(-time.Hour) }
	_, d2, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "11"))
	require.NoError(t, err)
	assert.True(t, d2.UpdatedAt.Equal(d.UpdatedAt))
}

func TestTransitionToPaidIfPending(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, d, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "10"))
	require.NoError(t, err)

	outcome, err := s.TransitionToPaidIfPending(ctx, d.ID, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionApplied, outcome)

	outcome, err = s.TransitionToPaidIfPending(ctx, d.ID, "pi_2")
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionAlreadyPaid, outcome)

	got, err := s.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", got.Ref())

	_, err = s.TransitionToPaidIfPending(ctx, 999, "pi_3")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestTransitionToPaidIfPending_ConcurrentAtMostOneApplied(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, d, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "10"))
	require.NoError(t, err)

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := s.TransitionToPaidIfPending(ctx, d.ID, fmt.Sprintf("pi_%d", i))
			if err != nil {
				t.Errorf("transition %d: %v", i, err)
				return
			}
			if outcome == domain.TransitionApplied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
}

func TestAppendPaymentRecord_Idempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, d, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "10"))
	require.NoError(t, err)

	rec := &domain.PaymentRecord{Amount: d.Amount, ExternalRef: "pi_1"}
	require.NoError(t, s.AppendPaymentRecord(ctx, d.ID, rec))
	assert.Equal(t, domain.PaymentStatusSucceeded, rec.Status)

	err = s.AppendPaymentRecord(ctx, d.ID, &domain.PaymentRecord{Amount: d.Amount, ExternalRef: "pi_1"})
	assert.True(t, apperr.Is(err, apperr.Duplicate))

	list, err := s.ListPayments(ctx, d.ID, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pi_1", list[0].ExternalRef)
}

func TestAppendPaymentRecord_UnknownDebt(t *testing.T) {
	s := newStore(t)
	err := s.AppendPaymentRecord(context.Background(), 42, &domain.PaymentRecord{Amount: decimal.NewFromInt(1), ExternalRef: "pi_x"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestListPayments_MostRecentFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, d, err := s.UpsertFromImport(ctx, importRec("jane@example.com", "10"))
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		require.NoError(t, s.AppendPaymentRecord(ctx, d.ID, &domain.PaymentRecord{
			Amount: decimal.NewFromInt(1), ExternalRef: fmt.Sprintf("pi_%d", i), PaidAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	list, err := s.ListPayments(ctx, d.ID, debts.RecentPayments)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "pi_6", list[0].ExternalRef)
	assert.Equal(t, "pi_2", list[4].ExternalRef)
}

func TestFindByEmail_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.FindByEmail(context.Background(), "ghost@example.com")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestList_SearchStatusSort(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, r := range []struct{ email, amount string }{
		{"alice@example.com", "9.50"},
		{"bob@example.com", "100"},
		{"carol@example.com", "20"},
	} {
		_, _, err := s.UpsertFromImport(ctx, importRec(r.email, r.amount))
		require.NoError(t, err)
	}
	bob, err := s.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = s.TransitionToPaidIfPending(ctx, bob.ID, "pi_bob")
	require.NoError(t, err)

	all, total, err := s.List(ctx, debts.ListFilter{SortBy: debts.SortAmount, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "bob@example.com", all[0].Email)
	assert.Equal(t, "alice@example.com", all[2].Email)

	pending, total, err := s.List(ctx, debts.ListFilter{Status: domain.StatusPending, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, pending, 1)

	found, total, err := s.List(ctx, debts.ListFilter{Search: "CAROL"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "carol@example.com", found[0].Email)
}
