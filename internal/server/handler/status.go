package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/engine"
)

// StatusEngine is the slice of the engine the status endpoint needs.
type StatusEngine interface {
	Status(ctx context.Context) (engine.Snapshot, error)
}

// TriggerSource reports upcoming trigger times.
type TriggerSource interface {
	NextRuns() map[string]time.Time
}

// StatusHandler serves the ledger + schedule snapshot.
type StatusHandler struct {
	engine   StatusEngine
	triggers TriggerSource
}

func NewStatusHandler(eng StatusEngine, triggers TriggerSource) *StatusHandler {
	return &StatusHandler{engine: eng, triggers: triggers}
}

// GetStatus responds with funds, the open position (null when flat) and the
// next trigger times.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Status(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	body := map[string]any{
		"ok": true,
		"funds": map[string]any{
			"cash":         snap.Funds.Cash.StringFixed(2),
			"cash_inr":     domain.FormatINR(snap.Funds.Cash),
			"realized":     snap.Funds.Realized.StringFixed(2),
			"realized_inr": domain.FormatINR(snap.Funds.Realized),
		},
		"position": snap.Position,
	}

	if h.triggers != nil {
		next := make(map[string]string)
		for id, at := range h.triggers.NextRuns() {
			next[id] = at.Format(time.RFC3339)
		}
		body["next_runs"] = next
	}

	writeJSON(w, http.StatusOK, body)
}
