// Package sqlite provides a SQLite-backed debts.Repository for local runs,
// the CLI and integration tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

var _ debts.Repository = (*Store)(nil)

const debtColumns = `id, name, email, subject, amount, status, external_ref, created_at, updated_at`

// Store implements debts.Repository using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed and applies the schema.
// The pool is limited to one connection so writers serialize.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("sqlite.Ping", err)
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperr.Wrap(apperr.Duplicate, op, err, "record already exists")
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperr.Wrap(apperr.NotFound, op, err, "debt not found")
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return apperr.Wrap(apperr.Validation, op, err, "value rejected by store")
		}
	}
	return apperr.Wrap(apperr.Persistence, op, err, "store unavailable")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebt(r rowScanner) (*domain.Debt, error) {
	var (
		d                domain.Debt
		ref              sql.NullString
		created, updated int64
	)
	if err := r.Scan(&d.ID, &d.Name, &d.Email, &d.Subject, &d.Amount, &d.Status, &ref, &created, &updated); err != nil {
		return nil, err
	}
	if ref.Valid {
		d.ExternalRef = &ref.String
	}
	d.CreatedAt = time.Unix(0, created).UTC()
	d.UpdatedAt = time.Unix(0, updated).UTC()
	return &d, nil
}

func (s *Store) UpsertFromImport(ctx context.Context, rec domain.ImportRecord) (domain.UpsertOutcome, *domain.Debt, error) {
	const op = "sqlite.UpsertFromImport"
	email := domain.NormalizeEmail(rec.Email)
	now := s.now().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, classify(op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO debts (name, email, subject, amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'PENDING', ?, ?)
		ON CONFLICT (email) DO NOTHING
	`, rec.Name, email, rec.Subject, rec.Amount.String(), now, now)
	if err != nil {
		return "", nil, classify(op, fmt.Errorf("failed to insert debt: %w", err))
	}
	outcome := domain.UpsertCreated
	if n, _ := res.RowsAffected(); n == 0 {
		outcome = domain.UpsertUpdated
		if _, err := tx.ExecContext(ctx, `
			UPDATE debts SET
				name = ?, subject = ?, amount = ?,
				status = CASE WHEN status = 'PAID' THEN 'PAID' ELSE 'PENDING' END,
				updated_at = MAX(updated_at, ?)
			WHERE email = ?
		`, rec.Name, rec.Subject, rec.Amount.String(), now, email); err != nil {
			return "", nil, classify(op, fmt.Errorf("failed to update debt: %w", err))
		}
	}

	d, err := scanDebt(tx.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE email = ?`, email))
	if err != nil {
		return "", nil, classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return "", nil, classify(op, err)
	}
	return outcome, d, nil
}

func (s *Store) TransitionToPaidIfPending(ctx context.Context, debtID int64, externalRef string) (domain.TransitionOutcome, error) {
	const op = "sqlite.TransitionToPaidIfPending"
	res, err := s.db.ExecContext(ctx, `
		UPDATE debts SET status = 'PAID', external_ref = ?, updated_at = MAX(updated_at, ?)
		WHERE id = ? AND status = 'PENDING'
	`, externalRef, s.now().UnixNano(), debtID)
	if err != nil {
		return "", classify(op, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return domain.TransitionApplied, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM debts WHERE id = ?)`, debtID).Scan(&exists); err != nil {
		return "", classify(op, err)
	}
	if !exists {
		return "", apperr.Errorf(apperr.NotFound, op, "debt %d not found", debtID)
	}
	return domain.TransitionAlreadyPaid, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Debt, error) {
	return s.findOne(ctx, "sqlite.FindByEmail", `email = ?`, domain.NormalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Debt, error) {
	return s.findOne(ctx, "sqlite.FindByID", `id = ?`, id)
}

func (s *Store) findOne(ctx context.Context, op, cond string, arg any) (*domain.Debt, error) {
	d, err := scanDebt(s.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE `+cond, arg))
	if err == sql.ErrNoRows {
		return nil, apperr.E(apperr.NotFound, op, "debt not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return d, nil
}

func (s *Store) AppendPaymentRecord(ctx context.Context, debtID int64, rec *domain.PaymentRecord) error {
	const op = "sqlite.AppendPaymentRecord"
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.PaidAt.IsZero() {
		rec.PaidAt = s.now()
	}
	if rec.Status == "" {
		rec.Status = domain.PaymentStatusSucceeded
	}
	rec.DebtID = debtID

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_records (id, debt_id, amount, external_ref, status, paid_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_ref) DO NOTHING
	`, rec.ID, debtID, rec.Amount.String(), rec.ExternalRef, rec.Status, rec.PaidAt.UnixNano())
	if err != nil {
		return classify(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.Duplicate, op, "payment already recorded")
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, debtID int64, limit int) ([]domain.PaymentRecord, error) {
	const op = "sqlite.ListPayments"
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, debt_id, amount, external_ref, status, paid_at
		FROM payment_records WHERE debt_id = ?
		ORDER BY paid_at DESC LIMIT ?
	`, debtID, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []domain.PaymentRecord
	for rows.Next() {
		var (
			p      domain.PaymentRecord
			paidAt int64
		)
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.ExternalRef, &p.Status, &paidAt); err != nil {
			return nil, classify(op, err)
		}
		p.PaidAt = time.Unix(0, paidAt).UTC()
		out = append(out, p)
	}
	return out, classify(op, rows.Err())
}

func (s *Store) List(ctx context.Context, f debts.ListFilter) ([]domain.Debt, int, error) {
	const op = "sqlite.List"
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + q + "%"
		where = append(where, "(name LIKE ? OR email LIKE ? OR subject LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM debts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, classify(op, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	order := f.SortBy.Column()
	if order == "amount" {
		order = "CAST(amount AS REAL)"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	q := fmt.Sprintf(`SELECT %s FROM debts%s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`, debtColumns, clause, order, dir, dir)
	rows, err := s.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, classify(op, err)
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
