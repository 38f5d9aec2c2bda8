package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/imedwei/s3-backup-checker/internal/check"
	"github.com/imedwei/s3-backup-checker/internal/registry"
	"github.com/imedwei/s3-backup-checker/internal/storage"
)

// CheckHandler serves GET /{environment}/{backup}?token=...
type CheckHandler struct {
	checker *check.Checker
	logger  *slog.Logger
	strict  bool
}

// NewCheckHandler creates a check handler. With strict set, invalid verdicts
// are answered with 404 (nothing found) or 500 (too old, too small) instead
// of 200.
func NewCheckHandler(checker *check.Checker, logger *slog.Logger, strict bool) *CheckHandler {
	return &CheckHandler{
		checker: checker,
		logger:  logger,
		strict:  strict,
	}
}

// ObjectResponse describes the newest matching object.
type ObjectResponse struct {
	Key          string    `json:"key"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// VerdictResponse is the JSON body of a completed check.
type VerdictResponse struct {
	Environment   string          `json:"environment"`
	Backup        string          `json:"backup"`
	Status        check.Status    `json:"status"`
	Valid         bool            `json:"valid"`
	Message       string          `json:"message"`
	CheckedAt     time.Time       `json:"checked_at"`
	MaxAgeSeconds int64           `json:"max_age_seconds"`
	MinSizeKB     int64           `json:"min_size_kb"`
	Object        *ObjectResponse `json:"object,omitempty"`
	AgeSeconds    *int64          `json:"age_seconds,omitempty"`
	SizeKB        *int64          `json:"size_kb,omitempty"`
}

// NewVerdictResponse converts a check result into its JSON body.
func NewVerdictResponse(result check.Result) VerdictResponse {
	resp := VerdictResponse{
		Environment:   result.Rule.Environment,
		Backup:        result.Rule.Name,
		Status:        result.Verdict.Status,
		Valid:         result.Verdict.Valid(),
		Message:       result.Verdict.Message(result.Rule),
		CheckedAt:     result.CheckedAt.UTC(),
		MaxAgeSeconds: int64(result.Rule.MaxAge / time.Second),
		MinSizeKB:     result.Rule.MinSizeKB,
	}

	if obj := result.Verdict.Object; obj != nil {
		age := int64(result.Verdict.Age / time.Second)
		size := result.Verdict.SizeKB()
		resp.Object = &ObjectResponse{
			Key:          obj.Key,
			SizeBytes:    obj.Size,
			LastModified: obj.LastModified.UTC(),
		}
		resp.AgeSeconds = &age
		resp.SizeKB = &size
	}

	return resp
}

func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	environment, envErr := url.PathUnescape(chi.URLParam(r, "environment"))
	backup, backupErr := url.PathUnescape(chi.URLParam(r, "backup"))
	if envErr != nil || backupErr != nil || environment == "" || backup == "" {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "Please specify an environment and backup")
		return
	}

	result, err := h.checker.Check(r.Context(), environment, backup, r.URL.Query().Get("token"))
	if err != nil {
		h.writeCheckError(w, err)
		return
	}

	writeJSON(w, h.statusCode(result.Verdict), NewVerdictResponse(result))
}

func (h *CheckHandler) statusCode(verdict check.Verdict) int {
	if !h.strict {
		return http.StatusOK
	}
	switch verdict.Status {
	case check.StatusValid:
		return http.StatusOK
	case check.StatusNoObjectFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *CheckHandler) writeCheckError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotConfigured):
		WriteError(w, http.StatusNotFound, CodeNotConfigured, err.Error())
	case errors.Is(err, check.ErrAccessDenied):
		WriteError(w, http.StatusForbidden, CodeForbidden, err.Error())
	case errors.Is(err, check.ErrTokenNotConfigured):
		WriteError(w, http.StatusInternalServerError, CodeTokenMisconfigured, err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		WriteError(w, http.StatusInternalServerError, CodeStorageUnavailable, "backup storage is unavailable")
	default:
		h.logger.Error("Unexpected check failure", "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}
