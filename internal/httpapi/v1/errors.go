package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/lock"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "invalid")
}

func notFound(w http.ResponseWriter) { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// unprocessableErrs are the domain rule violations reported as 422, each under
// its own stable code (the sentinel's text).
var unprocessableErrs = []error{
	errs.ErrParentNotFound,
	errs.ErrParentNotSynthetic,
	errs.ErrCycle,
	errs.ErrPercentageMismatch,
	errs.ErrMissingCondition,
	errs.ErrNoItems,
	errs.ErrNotPostable,
	errs.ErrInvalidTransition,
	errs.ErrUnprocessable,
}

// writeServiceErr maps a service error onto the API's status codes.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
		return
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, err.Error())
		return
	case errors.Is(err, errs.ErrHasChildren):
		writeErr(w, http.StatusConflict, err.Error(), errs.ErrHasChildren.Error())
		return
	case errors.Is(err, errs.ErrInUse):
		writeErr(w, http.StatusConflict, err.Error(), errs.ErrInUse.Error())
		return
	case errors.Is(err, errs.ErrConflict), errors.Is(err, lock.ErrNotObtained):
		writeErr(w, http.StatusConflict, err.Error(), errs.ErrConflict.Error())
		return
	}
	for _, target := range unprocessableErrs {
		if errors.Is(err, target) {
			unprocessable(w, err.Error(), target.Error())
			return
		}
	}
	s.log.Error("request failed", "path", r.URL.Path, "err", err)
	writeErr(w, http.StatusInternalServerError, "internal error", "internal")
}

// validationMessage flattens validator errors into "field: tag" pairs.
func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err.Error()
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
