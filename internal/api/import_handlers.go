package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/ignite/debt-recovery/internal/importsource"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/httputil"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
)

// ImportRequest names a server-side import feed.
type ImportRequest struct {
	Path  string `json:"path,omitempty"`
	S3URI string `json:"s3Uri,omitempty"`
}

// ImportDebts reconciles an uploaded or referenced debt file.
//
//	POST /api/debts/import  multipart "file" (.csv/.xlsx), or JSON {"path"} / {"s3Uri"}
func (h *Handlers) ImportDebts(w http.ResponseWriter, r *http.Request) {
	src, err := h.importSource(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.importer.Run(r.Context(), src)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	logger.Info("debts imported",
		"total_rows", summary.TotalRows,
		"created", summary.Created,
		"updated", summary.Updated,
		"invalid", summary.InvalidRows,
		"failed", summary.Failed,
	)
	httputil.OK(w, summary)
}

func (h *Handlers) importSource(w http.ResponseWriter, r *http.Request) (importsource.RowReader, error) {
	const op = "api.ImportDebts"
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return nil, apperr.Wrap(apperr.Validation, op, err, "invalid multipart upload")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, apperr.E(apperr.Validation, op, `missing "file" field`)
		}
		src, err := importsource.FromUpload(header.Filename, file)
		if err != nil {
			file.Close()
			return nil, err
		}
		return src, nil
	}

	var req ImportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		return nil, apperr.Wrap(apperr.Validation, op, err, "invalid JSON body")
	}
	switch {
	case strings.TrimSpace(req.S3URI) != "":
		if h.s3 == nil {
			return nil, apperr.E(apperr.Validation, op, "S3 imports are not configured")
		}
		return importsource.OpenS3(r.Context(), h.s3, req.S3URI)
	case strings.TrimSpace(req.Path) != "":
		if !h.allowPath {
			return nil, apperr.E(apperr.Validation, op, "path imports are disabled")
		}
		return importsource.Open(req.Path)
	default:
		return nil, apperr.E(apperr.Validation, op, `one of "file", "path" or "s3Uri" is required`)
	}
}
