package api

import (
	"github.com/ignite/debt-recovery/internal/importsource"
	"github.com/ignite/debt-recovery/internal/poller"
	"github.com/ignite/debt-recovery/internal/service/confirmation"
	"github.com/ignite/debt-recovery/internal/service/debts"
	"github.com/ignite/debt-recovery/internal/service/importer"
	"github.com/ignite/debt-recovery/internal/service/payment"
)

const (
	defaultMaxUpload  = 20 << 20
	maxWebhookPayload = 1 << 20
)

// Deps are the services the HTTP layer exposes. S3 may be nil, which
// disables s3Uri imports.
type Deps struct {
	Debts     *debts.Service
	Payments  *payment.Service
	Processor *confirmation.Processor
	Importer  *importer.Runner
	Poller    *poller.Poller
	S3        importsource.ObjectGetter

	// AllowPathImport accepts server-local file paths on the import endpoint.
	AllowPathImport bool
	MaxUploadBytes  int64
}

// Handlers contains all HTTP handlers
type Handlers struct {
	debts     *debts.Service
	payments  *payment.Service
	processor *confirmation.Processor
	importer  *importer.Runner
	poller    *poller.Poller
	s3        importsource.ObjectGetter

	allowPath bool
	maxUpload int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	return &Handlers{
		debts:     d.Debts,
		payments:  d.Payments,
		processor: d.Processor,
		importer:  d.Importer,
		poller:    d.Poller,
		s3:        d.S3,
		allowPath: d.AllowPathImport,
		maxUpload: d.MaxUploadBytes,
	}
}
