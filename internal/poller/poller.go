// Package poller watches a debt until it settles, a deadline passes, or
// the caller loses interest.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Reader is the read access the poller needs.
type Reader interface {
	FindByID(ctx context.Context, id int64) (*domain.Debt, error)
}

// Result is how a watch ended.
type Result string

const (
	ResultSettled   Result = "settled"
	ResultTimedOut  Result = "timed_out"
	ResultCancelled Result = "cancelled"
)

// Config tunes a Poller. Zero values take the defaults.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
}

// Poller re-reads a debt on an interval.
type Poller struct {
	reader   Reader
	interval time.Duration
	timeout  time.Duration
	clock    Clock
}

// New creates a poller.
func New(reader Reader, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Poller{reader: reader, interval: cfg.Interval, timeout: cfg.Timeout, clock: cfg.Clock}
}

// Watch reads the debt immediately and then every interval. onSettled, if
// not nil, is called exactly once with the PAID debt. A NotFound read ends
// the watch with that error; other read errors are logged and retried on
// the next tick.
func (p *Poller) Watch(ctx context.Context, debtID int64, onSettled func(*domain.Debt)) (Result, *domain.Debt, error) {
	var once sync.Once
	settle := func(d *domain.Debt) {
		if onSettled != nil {
			once.Do(func() { onSettled(d) })
		}
	}

	check := func() (*domain.Debt, error) {
		d, err := p.reader.FindByID(ctx, debtID)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				return nil, err
			}
			if ctx.Err() == nil {
				logger.Warn("poll read failed", "debt_id", debtID, "error", err)
			}
			return nil, nil
		}
		if d.IsPaid() {
			return d, nil
		}
		return nil, nil
	}

	if ctx.Err() != nil {
		return ResultCancelled, nil, nil
	}
	d, err := check()
	if err != nil {
		return "", nil, err
	}
	if d != nil {
		settle(d)
		return ResultSettled, d, nil
	}

	deadline := p.clock.After(p.timeout)
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ResultCancelled, nil, nil
		case <-deadline:
			return ResultTimedOut, nil, nil
		case <-ticker.C():
			d, err := check()
			if err != nil {
				return "", nil, err
			}
			if d != nil {
				settle(d)
				return ResultSettled, d, nil
			}
		}
	}
}
