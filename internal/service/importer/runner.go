package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/debt-recovery/internal/importsource"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/distlock"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
)

// LockFactory returns a fresh lock for one import run.
type LockFactory func() distlock.DistLock

var errLeaseLost = errors.New("import lock lease lost")

// Runner serializes import runs so two feeds never interleave.
type Runner struct {
	rec     *Reconciler
	newLock LockFactory
}

// NewRunner guards rec with locks from newLock.
func NewRunner(rec *Reconciler, newLock LockFactory) *Runner {
	return &Runner{rec: rec, newLock: newLock}
}

// Run reconciles src while holding the import lock and closes src. A lock
// that expires on its own is renewed at a third of its TTL for as long as
// the run lasts; if the hold is lost anyway the run is cancelled.
func (r *Runner) Run(ctx context.Context, src importsource.RowReader) (*Summary, error) {
	const op = "importer.Run"
	defer src.Close()

	lock := r.newLock()
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, op, err, "could not acquire import lock")
	}
	if !ok {
		return nil, apperr.E(apperr.Conflict, op, "another import is already running")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release import lock", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if lease, ok := lock.(distlock.Lease); ok {
		stop := keepAlive(runCtx, lease, cancel)
		defer stop()
	}

	sum, err := r.rec.Reconcile(runCtx, src)
	if err != nil && errors.Is(context.Cause(runCtx), errLeaseLost) {
		return nil, apperr.Wrap(apperr.Conflict, op, errLeaseLost, "import lock expired during the run")
	}
	return sum, err
}

// keepAlive extends lease until the returned stop func is called or ctx
// ends. stop waits for the renewal goroutine to exit.
func keepAlive(ctx context.Context, lease distlock.Lease, lost context.CancelCauseFunc) func() {
	ttl := lease.TTL()
	if ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lease.Extend(ctx, ttl)
				switch {
				case errors.Is(err, distlock.ErrNotHeld):
					logger.Error("import lock lost, cancelling run")
					lost(errLeaseLost)
					return
				case err != nil && ctx.Err() == nil:
					logger.Warn("extend import lock", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
