// Package debtstest provides an in-memory debts.Repository for tests.
package debtstest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

var _ debts.Repository = (*Repo)(nil)

// Repo is a mutex-guarded store with the same conditional-write semantics
// as the SQL repositories. The Fail* hooks inject errors per operation.
type Repo struct {
	mu       sync.RWMutex
	nextID   int64
	debts    map[int64]*domain.Debt
	byEmail  map[string]int64
	payments []domain.PaymentRecord
	refs     map[string]bool

	Now func() time.Time

	FailUpsert     func(rec domain.ImportRecord) error
	FailTransition func(debtID int64) error
	FailAppend     func(debtID int64) error
	FailFind       func() error

	FindCalls int
}

// New returns an empty repository.
func New() *Repo {
	return &Repo{
		debts:   make(map[int64]*domain.Debt),
		byEmail: make(map[string]int64),
		refs:    make(map[string]bool),
		Now:     time.Now,
	}
}

// Seed inserts a debt directly and returns its id.
func (r *Repo) Seed(d domain.Debt) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	d.Email = domain.NormalizeEmail(d.Email)
	if d.Status == "" {
		d.Status = domain.StatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.Now()
		d.UpdatedAt = d.CreatedAt
	}
	r.debts[d.ID] = &d
	r.byEmail[d.Email] = d.ID
	return d.ID
}

// Payments returns a copy of every payment record for debtID.
func (r *Repo) Payments(debtID int64) []domain.PaymentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PaymentRecord
	for _, p := range r.payments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	return out
}

func (r *Repo) UpsertFromImport(_ context.Context, rec domain.ImportRecord) (domain.UpsertOutcome, *domain.Debt, error) {
	if r.FailUpsert != nil {
		if err := r.FailUpsert(rec); err != nil {
			return "", nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()
	email := domain.NormalizeEmail(rec.Email)
	if id, ok := r.byEmail[email]; ok {
		d := r.debts[id]
		d.Name, d.Subject, d.Amount = rec.Name, rec.Subject, rec.Amount
		d.Status = domain.ImportStatus(d.Status)
		if now.After(d.UpdatedAt) {
			d.UpdatedAt = now
		}
		cp := *d
		return domain.UpsertUpdated, &cp, nil
	}

	r.nextID++
	d := &domain.Debt{
		ID: r.nextID, Name: rec.Name, Email: email, Subject: rec.Subject, Amount: rec.Amount,
		Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	r.debts[d.ID] = d
	r.byEmail[email] = d.ID
	cp := *d
	return domain.UpsertCreated, &cp, nil
}

func (r *Repo) TransitionToPaidIfPending(_ context.Context, debtID int64, externalRef string) (domain.TransitionOutcome, error) {
	if r.FailTransition != nil {
		if err := r.FailTransition(debtID); err != nil {
			return "", err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.debts[debtID]
	if !ok {
		return "", apperr.E(apperr.NotFound, "debtstest.Transition", "debt not found")
	}
	if !domain.CanSettle(d.Status) {
		return domain.TransitionAlreadyPaid, nil
	}
	ref := externalRef
	d.Status, d.ExternalRef = domain.StatusPaid, &ref
	if now := r.Now(); now.After(d.UpdatedAt) {
		d.UpdatedAt = now
	}
	return domain.TransitionApplied, nil
}

func (r *Repo) FindByEmail(_ context.Context, email string) (*domain.Debt, error) {
	if r.FailFind != nil {
		if err := r.FailFind(); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FindCalls++
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "debtstest.FindByEmail", "debt not found")
	}
	cp := *r.debts[id]
	return &cp, nil
}

func (r *Repo) FindByID(_ context.Context, id int64) (*domain.Debt, error) {
	if r.FailFind != nil {
		if err := r.FailFind(); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FindCalls++
	d, ok := r.debts[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "debtstest.FindByID", "debt not found")
	}
	cp := *d
	return &cp, nil
}

func (r *Repo) AppendPaymentRecord(_ context.Context, debtID int64, rec *domain.PaymentRecord) error {
	if r.FailAppend != nil {
		if err := r.FailAppend(debtID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.debts[debtID]; !ok {
		return apperr.E(apperr.NotFound, "debtstest.AppendPaymentRecord", "debt not found")
	}
	if r.refs[rec.ExternalRef] {
		return apperr.E(apperr.Duplicate, "debtstest.AppendPaymentRecord", "payment already recorded")
	}
	r.refs[rec.ExternalRef] = true
	cp := *rec
	cp.DebtID = debtID
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.PaidAt.IsZero() {
		cp.PaidAt = r.Now()
	}
	r.payments = append(r.payments, cp)
	return nil
}

func (r *Repo) ListPayments(_ context.Context, debtID int64, limit int) ([]domain.PaymentRecord, error) {
	out := r.Payments(debtID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) List(_ context.Context, f debts.ListFilter) ([]domain.Debt, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(f.Search)
	var all []domain.Debt
	for _, d := range r.debts {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name+" "+d.Email+" "+d.Subject), q) {
			continue
		}
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool {
		if f.Desc {
			return all[i].ID > all[j].ID
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	if f.Offset >= total {
		return []domain.Debt{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *Repo) Ping(context.Context) error { return nil }
func (r *Repo) Close() error               { return nil }
