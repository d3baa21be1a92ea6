package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

var _ debts.Repository = (*DebtRepo)(nil)

const debtColumns = `id, name, email, subject, amount, status, external_ref, created_at, updated_at`

// DebtRepo implements debts.Repository against PostgreSQL.
type DebtRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewDebtRepo creates a Postgres-backed debt repository.
func NewDebtRepo(db *sql.DB) *DebtRepo {
	return &DebtRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the pool for components that share it (locks, health checks).
func (r *DebtRepo) DB() *sql.DB { return r.db }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebt(s rowScanner, extra ...any) (*domain.Debt, error) {
	var (
		d   domain.Debt
		ref sql.NullString
	)
	dest := append([]any{&d.ID, &d.Name, &d.Email, &d.Subject, &d.Amount, &d.Status, &ref, &d.CreatedAt, &d.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if ref.Valid {
		d.ExternalRef = &ref.String
	}
	return &d, nil
}

func (r *DebtRepo) UpsertFromImport(ctx context.Context, rec domain.ImportRecord) (domain.UpsertOutcome, *domain.Debt, error) {
	const op = "postgres.UpsertFromImport"
	var inserted bool
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO debts (name, email, subject, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'PENDING', $5, $5)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			subject = EXCLUDED.subject,
			amount = EXCLUDED.amount,
			status = CASE WHEN debts.status = 'PAID' THEN 'PAID' ELSE 'PENDING' END,
			updated_at = GREATEST(debts.updated_at, EXCLUDED.updated_at)
		RETURNING `+debtColumns+`, (xmax = 0) AS inserted
	`, rec.Name, domain.NormalizeEmail(rec.Email), rec.Subject, rec.Amount, r.now())

	d, err := scanDebt(row, &inserted)
	if err != nil {
		return "", nil, classify(op, fmt.Errorf("upsert debt: %w", err))
	}
	if inserted {
		return domain.UpsertCreated, d, nil
	}
	return domain.UpsertUpdated, d, nil
}

func (r *DebtRepo) TransitionToPaidIfPending(ctx context.Context, debtID int64, externalRef string) (domain.TransitionOutcome, error) {
	const op = "postgres.TransitionToPaidIfPending"
	res, err := r.db.ExecContext(ctx, `
		UPDATE debts
		SET status = 'PAID', external_ref = $2, updated_at = GREATEST(updated_at, $3)
		WHERE id = $1 AND status = 'PENDING'
	`, debtID, externalRef, r.now())
	if err != nil {
		return "", classify(op, fmt.Errorf("mark debt paid: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", classify(op, err)
	}
	if n == 1 {
		return domain.TransitionApplied, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM debts WHERE id = $1)`, debtID).Scan(&exists); err != nil {
		return "", classify(op, fmt.Errorf("check debt: %w", err))
	}
	if !exists {
		return "", apperr.Errorf(apperr.NotFound, op, "debt %d not found", debtID)
	}
	return domain.TransitionAlreadyPaid, nil
}

func (r *DebtRepo) FindByEmail(ctx context.Context, email string) (*domain.Debt, error) {
	const op = "postgres.FindByEmail"
	d, err := scanDebt(r.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE email = $1`, domain.NormalizeEmail(email)))
	if err == sql.ErrNoRows {
		return nil, apperr.E(apperr.NotFound, op, "debt not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return d, nil
}

func (r *DebtRepo) FindByID(ctx context.Context, id int64) (*domain.Debt, error) {
	const op = "postgres.FindByID"
	d, err := scanDebt(r.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.E(apperr.NotFound, op, "debt not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return d, nil
}

func (r *DebtRepo) AppendPaymentRecord(ctx context.Context, debtID int64, rec *domain.PaymentRecord) error {
	const op = "postgres.AppendPaymentRecord"
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.PaidAt.IsZero() {
		rec.PaidAt = r.now()
	}
	if rec.Status == "" {
		rec.Status = domain.PaymentStatusSucceeded
	}
	rec.DebtID = debtID

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_records (id, debt_id, amount, external_ref, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_ref) DO NOTHING
	`, rec.ID, debtID, rec.Amount, rec.ExternalRef, rec.Status, rec.PaidAt)
	if err != nil {
		return classify(op, fmt.Errorf("append payment record: %w", err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.E(apperr.Duplicate, op, "payment already recorded")
	}
	return nil
}

func (r *DebtRepo) ListPayments(ctx context.Context, debtID int64, limit int) ([]domain.PaymentRecord, error) {
	const op = "postgres.ListPayments"
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, debt_id, amount, external_ref, status, paid_at
		FROM payment_records
		WHERE debt_id = $1
		ORDER BY paid_at DESC
		LIMIT $2
	`, debtID, limit)
	if err != nil {
		return nil, classify(op, fmt.Errorf("list payments: %w", err))
	}
	defer rows.Close()

	var out []domain.PaymentRecord
	for rows.Next() {
		var p domain.PaymentRecord
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.ExternalRef, &p.Status, &p.PaidAt); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, p)
	}
	return out, classify(op, rows.Err())
}

func (r *DebtRepo) List(ctx context.Context, f debts.ListFilter) ([]domain.Debt, int, error) {
	const op = "postgres.List"
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR subject ILIKE $%d)", n, n, n))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM debts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, classify(op, fmt.Errorf("count debts: %w", err))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	args = append(args, limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM debts%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		debtColumns, clause, f.SortBy.Column(), dir, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, classify(op, fmt.Errorf("list debts: %w", err))
	}
	defer rows.Close()

	var out []domain.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, 0, classify(op, err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(op, err)
	}
	return out, total, nil
}

func (r *DebtRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify("postgres.Ping", err)
	}
	return nil
}

func (r *DebtRepo) Close() error {
	if err := r.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
