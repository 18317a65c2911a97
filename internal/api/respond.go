package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

var validate = validator.New(validator.WithRequiredStructEnabled())

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads and validates a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// writeEngineError maps review engine errors onto HTTP responses.
func writeEngineError(w http.ResponseWriter, err error) {
	var verr *review.ValidationError
	switch {
	case errors.Is(err, review.ErrUnauthorized):
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
	case errors.As(err, &verr):
		httpError(w, http.StatusUnprocessableEntity, "validation_error", "%v", err)
	case errors.Is(err, review.ErrInvalidState):
		httpError(w, http.StatusConflict, "invalid_state_error", "%v", err)
	case errors.Is(err, review.ErrUnknownArticle), errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case review.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		httpError(w, http.StatusServiceUnavailable, "api_error", "temporarily unavailable: %v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func parseInt64Param(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
