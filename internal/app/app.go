// Package app wires configuration into the running components shared by
// the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/debt-recovery/internal/awsclient"
	"github.com/ignite/debt-recovery/internal/cache"
	"github.com/ignite/debt-recovery/internal/config"
	"github.com/ignite/debt-recovery/internal/events"
	"github.com/ignite/debt-recovery/internal/notify"
	"github.com/ignite/debt-recovery/internal/pkg/distlock"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
	"github.com/ignite/debt-recovery/internal/poller"
	"github.com/ignite/debt-recovery/internal/repository/postgres"
	"github.com/ignite/debt-recovery/internal/repository/sqlite"
	"github.com/ignite/debt-recovery/internal/service/confirmation"
	"github.com/ignite/debt-recovery/internal/service/debts"
	"github.com/ignite/debt-recovery/internal/service/importer"
	"github.com/ignite/debt-recovery/internal/service/payment"
	"github.com/ignite/debt-recovery/internal/stripeclient"
)

// ImportLockKey names the lock that serializes import runs.
const ImportLockKey = "debt-import"

// App holds the wired components.
type App struct {
	Config *config.Config
	Repo   debts.Repository
	DB     *sql.DB
	Redis  *redis.Client
	S3     *s3.Client

	Debts     *debts.Service
	Payments  *payment.Service
	Processor *confirmation.Processor
	Importer  *importer.Runner
	Poller    *poller.Poller
}

// SetupLogger installs the process logger from cfg.
func SetupLogger(cfg config.LogConfig) {
	logger.Setup(logger.Options{Level: cfg.Level, Format: cfg.Format, RedactPII: cfg.Redact()})
}

// New connects the store and optional backends and builds the services.
// Redis, SES, SQS and S3 are optional; their absence degrades to local
// equivalents.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, continuing without it", "error", err)
		} else {
			a.Redis = client
		}
	}

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	awsCfg, err := awsclient.Load(ctx, awsclient.Options{Region: cfg.Import.S3Region})
	if err != nil {
		logger.Warn("s3 imports disabled", "error", err)
	} else {
		a.S3 = s3.NewFromConfig(awsCfg)
	}

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout creation will fail")
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}

	a.Debts = debts.NewService(a.Repo)
	a.Payments = payment.NewService(a.Repo, stripeclient.NewGateway(cfg.Stripe.SecretKey), payment.Config{
		BaseURL:  cfg.Server.BaseURL,
		Currency: cfg.Stripe.Currency,
	})

	procOpts := []confirmation.Option{
		confirmation.WithNotifier(notifier),
		confirmation.WithPublisher(publisher),
	}
	if a.Redis != nil {
		procOpts = append(procOpts, confirmation.WithLedger(cache.NewEventLedger(a.Redis, cfg.Redis.LedgerTTL())))
	}
	verifier := stripeclient.NewVerifier(cfg.Stripe.WebhookSecret).WithTolerance(cfg.Stripe.Tolerance())
	a.Processor = confirmation.NewProcessor(a.Repo, verifier, procOpts...)

	rec := importer.NewReconciler(a.Repo, importer.WithNotifier(notifier), importer.WithWorkers(cfg.Import.Workers))
	lockDB := a.DB
	if cfg.Database.IsSQLite() {
		// advisory locks are postgres-only
		lockDB = nil
	}
	a.Importer = importer.NewRunner(rec, func() distlock.DistLock {
		return distlock.NewLock(a.Redis, lockDB, ImportLockKey, cfg.Redis.LockTTL())
	})

	a.Poller = poller.New(a.Repo, poller.Config{
		Interval: cfg.Polling.Interval(),
		Timeout:  cfg.Polling.Timeout(),
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.IsSQLite() {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.Repo, a.DB = store, store.DB()
		logger.Info("using sqlite store", "path", cfg.SQLitePath)
		return nil
	}
	if cfg.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	db, err := postgres.Connect(ctx, cfg.URL, postgres.PoolOptions{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	a.Repo, a.DB = postgres.NewDebtRepo(db), db
	return nil
}

// Notifier is what both the importer and the confirmation processor need.
type Notifier interface {
	importer.Notifier
	confirmation.Notifier
}

func (a *App) buildNotifier(ctx context.Context) (Notifier, error) {
	cfg := a.Config.Notifications
	var sender notify.Sender = notify.LogSender{}
	if cfg.Configured() {
		awsCfg, err := awsclient.Load(ctx, awsclient.Options{
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.FromEmail, cfg.FromName)
		logger.Info("debtor emails enabled", "provider", "ses", "region", cfg.Region)
	} else {
		logger.Info("debtor emails disabled, messages will be logged")
	}
	return notify.New(sender, a.Config.Server.BaseURL, a.Config.Stripe.Currency), nil
}

func (a *App) buildPublisher(ctx context.Context) (confirmation.Publisher, error) {
	cfg := a.Config.Events
	if cfg.QueueURL == "" {
		return events.LogPublisher{}, nil
	}
	awsCfg, err := awsclient.Load(ctx, awsclient.Options{Region: cfg.Region})
	if err != nil {
		return nil, err
	}
	return events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.QueueURL), nil
}

// Close releases the store and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Repo != nil {
		a.Repo.Close()
	}
}
