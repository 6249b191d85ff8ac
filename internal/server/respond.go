package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/tasks"
)

// errorPayload is the body of every non-2xx JSON response.
type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Row   *int   `json:"row,omitempty"`
}

// errorClasses maps each sentinel to its HTTP status and payload code. Order matters: the first match wins.
var errorClasses = []struct {
	target error
	status int
	code   string
}{
	{shared.ErrStorage, http.StatusInternalServerError, "storage"},
	{shared.ErrInvalidGeometry, http.StatusBadRequest, "invalid_geometry"},
	{shared.ErrMalformedRow, http.StatusBadRequest, "malformed_row"},
	{shared.ErrUnknownLabel, http.StatusBadRequest, "unknown_label"},
	{shared.ErrPixelParse, http.StatusBadRequest, "pixel_parse"},
	{shared.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{shared.ErrInvalidArgument, http.StatusBadRequest, "invalid_input"},
	{shared.ErrMissingArgument, http.StatusBadRequest, "invalid_input"},
	{shared.ErrNotFound, http.StatusNotFound, "not_found"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{shared.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err and writes the matching status and payload.
// Unclassified errors are reported as a generic 500 without their message.
func writeError(w http.ResponseWriter, err error) {
	status, payload := classify(err)
	writeJSON(w, status, payload)
}

func classify(err error) (int, errorPayload) {
	payload := errorPayload{Error: "internal server error", Code: "internal"}
	status := http.StatusInternalServerError

	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			status, payload.Code = c.status, c.code
			payload.Error = err.Error()
			break
		}
	}

	var rowErr *tasks.RowError
	if errors.As(err, &rowErr) {
		row := rowErr.Row
		payload.Row = &row
	}
	return status, payload
}

// queryFlag reports whether a boolean query parameter such as ?assigned_only=1 is set.
func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// queryInt reads a non-negative integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Join(shared.ErrInvalidArgument, errors.New(name+" must be a non-negative integer"))
	}
	return n, nil
}
