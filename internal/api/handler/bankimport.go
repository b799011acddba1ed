package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/bankimport"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
	"github.com/rentdesk/rentdesk/pkg/norma43"
)

const defaultStatementName = "statement.n43"

// Importer starts statement imports and reports their progress.
type Importer interface {
	Import(ctx context.Context, companyID uuid.UUID, fileName string, r io.Reader) (*models.ImportJob, error)
	GetJob(ctx context.Context, id, companyID uuid.UUID) (*models.ImportJob, error)
}

// MovementLister lists imported bank movements.
type MovementLister interface {
	ListBankMovements(ctx context.Context, filter store.MovementFilter) ([]*models.BankMovement, int, error)
}

// NewNorma43ImportHandler returns an http.HandlerFunc for
// POST /api/v1/bank-import/norma43. The statement is either the raw request
// body or the "file" part of a multipart form. The file is parsed before the
// job is created, so malformed statements are rejected with the line number.
func NewNorma43ImportHandler(imp Importer, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		var (
			body     io.Reader = r.Body
			fileName           = r.URL.Query().Get("file_name")
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBytes); err != nil {
				writeUploadError(w, err)
				return
			}
			f, header, err := r.FormFile("file")
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "multipart field \"file\" is required", nil)
				return
			}
			defer f.Close()
			body = f
			fileName = header.Filename
		}
		fileName = filepath.Base(strings.TrimSpace(fileName))
		if fileName == "" || fileName == "." || fileName == "/" {
			fileName = defaultStatementName
		}

		job, err := imp.Import(r.Context(), cid, fileName, body)
		if err != nil {
			writeUploadError(w, err)
			return
		}
		response.Accepted(w, job)
	}
}

func writeUploadError(w http.ResponseWriter, err error) {
	var (
		tooLarge *http.MaxBytesError
		perr     *norma43.ParseError
	)
	switch {
	case errors.As(err, &tooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"Statement exceeds the maximum size of "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
	case errors.As(err, &perr):
		response.Error(w, http.StatusBadRequest, "INVALID_FILE", perr.Error(), map[string]any{
			"line":   perr.Line,
			"record": perr.Record,
		})
	case errors.Is(err, norma43.ErrEmptyFile),
		errors.Is(err, norma43.ErrInvalidRecord),
		errors.Is(err, norma43.ErrTotalsMismatch),
		errors.Is(err, bankimport.ErrNoMovements):
		response.Error(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Malformed multipart body", nil)
	default:
		slog.Error("bank import failed to start", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

// NewGetImportJobHandler returns an http.HandlerFunc for
// GET /api/v1/bank-import/jobs/{jobID}.
func NewGetImportJobHandler(imp Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		jobID, ok := uuidParam(w, r, "jobID")
		if !ok {
			return
		}

		job, err := imp.GetJob(r.Context(), jobID, cid)
		if err != nil {
			writeStoreError(w, r, err, "Job")
			return
		}
		response.JSON(w, job)
	}
}

// NewListMovementsHandler returns an http.HandlerFunc for
// GET /api/v1/bank-movements.
func NewListMovementsHandler(ml MovementLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()

		filter := store.MovementFilter{
			CompanyID: cid,
			Account:   q.Get("account"),
			Page:      page,
		}
		from, err := parseDate(q.Get("from"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "from "+err.Error(), nil)
			return
		}
		to, err := parseDate(q.Get("to"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "to "+err.Error(), nil)
			return
		}
		if from != nil {
			filter.From = *from
		}
		if to != nil {
			filter.To = *to
		}
		if from != nil && to != nil && to.Before(*from) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "to must not be before from", nil)
			return
		}
		if v := q.Get("unreconciled"); v != "" {
			filter.Unreconciled, err = strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unreconciled must be true or false", nil)
				return
			}
		}
		if filter.JobID, ok = optionalUUIDQuery(w, r, "job_id"); !ok {
			return
		}

		movements, total, err := ml.ListBankMovements(r.Context(), filter)
		if err != nil {
			writeStoreError(w, r, err, "Bank movement")
			return
		}
		response.Collection(w, movements, response.NewMeta(page.Page, page.Limit, total))
	}
}
