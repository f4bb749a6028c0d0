// Package handler contains the HTTP handlers for the paper-trading API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"ok":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// writeEngineError maps engine failures onto the API status contract:
// 200 for idempotent no-ops, 409 when the bundle is unaffordable, 502 for
// quote or session failures, 500 for storage and everything else.
func writeEngineError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientFundsError
	var sessErr *domain.SessionError
	var storeErr *domain.StorageError

	switch {
	case domain.IsNoOp(err):
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": err.Error()})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":       false,
			"error":    insufficient.Error(),
			"need":     insufficient.Need.StringFixed(2),
			"need_inr": domain.FormatINR(insufficient.Need),
			"cash":     insufficient.Cash.StringFixed(2),
			"cash_inr": domain.FormatINR(insufficient.Cash),
		})
	case errors.Is(err, domain.ErrQuoteUnavailable),
		errors.Is(err, domain.ErrSignalUnavailable),
		errors.As(err, &sessErr):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &storeErr):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseLimit extracts a ?limit= query parameter with a default and cap.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
