package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/insights"
	"github.com/olvconsultores/stratevo/internal/lifecycle"
	"github.com/olvconsultores/stratevo/internal/qualify"
	"github.com/olvconsultores/stratevo/internal/store"
)

// errBadRequest marks request decoding and validation failures.
var errBadRequest = errors.New("api: bad request")

type badRequestError struct{ err error }

func (e badRequestError) Error() string        { return e.err.Error() }
func (e badRequestError) Unwrap() error        { return e.err }
func (e badRequestError) Is(target error) bool { return target == errBadRequest }

func badRequest(format string, args ...any) error {
	return badRequestError{err: fmt.Errorf(format, args...)}
}

// MapHTTPStatus translates domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, lifecycle.ErrRestoreExhausted):
		return http.StatusConflict
	case errors.Is(err, qualify.ErrInvalidICP),
		errors.Is(err, automation.ErrInvalidRule),
		errors.Is(err, lifecycle.ErrDiscardReasonRequired),
		errors.Is(err, insights.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondJSON writes v as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck
	}
}

// RespondError writes {"error": ...} and logs server-side failures.
func RespondError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	RespondJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("api: invalid request body: %v", err)
	}
	return nil
}
