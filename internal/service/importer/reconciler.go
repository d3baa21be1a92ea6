package importer

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/importsource"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

// Notifier is told about debts an import created.
type Notifier interface {
	DebtCreated(ctx context.Context, d *domain.Debt) error
}

// RowError describes one rejected row.
type RowError struct {
	Row     int    `json:"row"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

// Summary is the outcome of one import run.
type Summary struct {
	TotalRows   int        `json:"totalRows"`
	ValidRows   int        `json:"validRows"`
	InvalidRows int        `json:"invalidRows"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Failed      int        `json:"failed"`
	Errors      []RowError `json:"errors"`
}

// Reconciler applies import rows to the store.
type Reconciler struct {
	repo     debts.Repository
	notifier Notifier
	workers  int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNotifier sends a best-effort notice for every created debt.
func WithNotifier(n Notifier) Option { return func(r *Reconciler) { r.notifier = n } }

// WithWorkers spreads rows over n goroutines. Rows are partitioned by
// email so every row for one email is applied by the same worker, in
// source order.
func WithWorkers(n int) Option { return func(r *Reconciler) { r.workers = n } }

// NewReconciler creates a reconciler over repo.
func NewReconciler(repo debts.Repository, opts ...Option) *Reconciler {
	r := &Reconciler{repo: repo, workers: 1}
	for _, o := range opts {
		o(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// tally accumulates results from concurrent workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) reject(row int, email, msg string, invalid bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if invalid {
		t.s.InvalidRows++
	} else {
		t.s.Failed++
	}
	t.s.Errors = append(t.s.Errors, RowError{Row: row, Email: email, Message: msg})
}

func (t *tally) total() {
	t.mu.Lock()
	t.s.TotalRows++
	t.mu.Unlock()
}

func (t *tally) applied(outcome domain.UpsertOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.ValidRows++
	if outcome == domain.UpsertCreated {
		t.s.Created++
	} else {
		t.s.Updated++
	}
}

// job is a validated row waiting for its partition worker.
type job struct {
	row int
	rec domain.ImportRecord
}

// Reconcile drains src into the store. It returns an error only when the
// source itself breaks or ctx is cancelled; row problems are reported in
// the Summary.
func (r *Reconciler) Reconcile(ctx context.Context, src importsource.RowReader) (*Summary, error) {
	t := &tally{}
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan job, r.workers)
	for i := range queues {
		q := make(chan job, 64)
		queues[i] = q
		g.Go(func() error { return r.apply(gctx, q, t) })
	}

	readErr := r.dispatch(gctx, src, queues, t)
	for _, q := range queues {
		close(q)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}

	sort.SliceStable(t.s.Errors, func(i, j int) bool { return t.s.Errors[i].Row < t.s.Errors[j].Row })
	if t.s.Errors == nil {
		t.s.Errors = []RowError{}
	}
	logger.Info("import reconciled",
		"total", t.s.TotalRows, "created", t.s.Created, "updated", t.s.Updated,
		"invalid", t.s.InvalidRows, "failed", t.s.Failed)
	return &t.s, nil
}

// dispatch validates rows and routes each to the queue owning its email.
func (r *Reconciler) dispatch(ctx context.Context, src importsource.RowReader, queues []chan job, t *tally) error {
	for {
		row, err := src.Read()
		if err == io.EOF {
			return nil
		}
		var rowErr *importsource.RowError
		if errors.As(err, &rowErr) {
			t.total()
			t.reject(rowErr.Row, "", "malformed record: "+rowErr.Err.Error(), true)
			continue
		}
		if err != nil {
			return apperr.Wrap(apperr.Validation, "importer.Reconcile", err, "import source unreadable")
		}
		t.total()

		rec, verr := validate(row)
		if verr != "" {
			t.reject(row.Number, rec.Email, verr, true)
			continue
		}
		select {
		case queues[partition(rec.Email, len(queues))] <- job{row: row.Number, rec: rec}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// apply writes one partition in order. Store failures are row-scoped;
// only cancellation aborts the partition.
func (r *Reconciler) apply(ctx context.Context, jobs <-chan job, t *tally) error {
	for j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, d, err := r.repo.UpsertFromImport(ctx, j.rec)
		if err != nil {
			logger.Warn("import row failed", "row", j.row, "email", j.rec.Email, "error", err)
			t.reject(j.row, j.rec.Email, apperr.MessageOf(err), false)
			continue
		}
		t.applied(outcome)
		if outcome == domain.UpsertCreated && r.notifier != nil {
			if err := r.notifier.DebtCreated(ctx, d); err != nil {
				logger.Warn("debt created notice failed", "debt_id", d.ID, "email", d.Email, "error", err)
			}
		}
	}
	return nil
}

func validate(row importsource.Row) (domain.ImportRecord, string) {
	name := strings.TrimSpace(row.Name)
	email := domain.NormalizeEmail(row.Email)
	subject := strings.TrimSpace(row.Subject)
	amountStr := strings.TrimSpace(row.Amount)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if subject == "" {
		missing = append(missing, "debtSubject")
	}
	if amountStr == "" {
		missing = append(missing, "debtAmount")
	}
	if len(missing) > 0 {
		return domain.ImportRecord{Email: email}, "missing required fields: " + strings.Join(missing, ", ")
	}
	if !domain.ValidEmail(email) {
		return domain.ImportRecord{Email: email}, "invalid email address"
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.ImportRecord{Email: email}, "invalid debt amount: " + amountStr
	}
	if !amount.IsPositive() {
		return domain.ImportRecord{Email: email}, "debt amount must be greater than 0"
	}
	if domain.ToMinorUnits(amount) <= 0 {
		return domain.ImportRecord{Email: email}, "debt amount is below the smallest chargeable unit"
	}
	return domain.ImportRecord{Name: name, Email: email, Subject: subject, Amount: amount}, ""
}

func partition(email string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(email))
	return int(h.Sum32() % uint32(n))
}
