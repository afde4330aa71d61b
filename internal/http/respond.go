package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"assofin/internal/amqp"
	"assofin/internal/core"
	"assofin/internal/importer"
	"assofin/internal/log"
	"assofin/internal/ports"
	"assofin/internal/services"
)

// errBadRequest marks malformed input: unreadable JSON, bad query values.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// validationErrors are client mistakes reported with their message.
var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrInvalidAccountType,
	core.ErrEmptyAccount,
	core.ErrEmptyName,
	core.ErrEmptyCategory,
	core.ErrEmptyKeywords,
	core.ErrInvalidPriority,
	core.ErrCategoryTypeMismatch,
	core.ErrInvalidDate,
	core.ErrDescriptionTooLong,
	importer.ErrNoHeader,
	services.ErrNoImportRows,
}

// statusFor maps a service error to its HTTP status and public message.
// Unknown errors are hidden behind a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrAsyncUnavailable), errors.Is(err, amqp.ErrCircuitOpen):
		return http.StatusServiceUnavailable, err.Error()
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail logs server-side failures and writes the mapped error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	writeError(w, r, status, msg)
}

// decodeJSON reads a single JSON object, rejecting unknown fields. An empty
// body leaves v untouched when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON body: trailing data")
	}
	return nil
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
