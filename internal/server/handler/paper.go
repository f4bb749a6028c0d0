package handler

import (
	"context"
	"net/http"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/engine"
)

// PaperEngine is the slice of the engine the manual trade endpoints need.
type PaperEngine interface {
	OpenFromMarket(ctx context.Context) (engine.OpenResult, error)
	Close(ctx context.Context) (engine.CloseResult, error)
	Reset(ctx context.Context) error
}

// PaperHandler exposes manual open/close/reset, the same actions the
// scheduler fires on its own.
type PaperHandler struct {
	engine PaperEngine
}

func NewPaperHandler(eng PaperEngine) *PaperHandler {
	return &PaperHandler{engine: eng}
}

// Open opens the overnight bundle at current market prices.
// POST /api/paper/open
func (h *PaperHandler) Open(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.OpenFromMarket(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":              true,
		"bundles":         res.Bundles,
		"position":        res.Position,
		"entry_value":     res.Position.EntryValue.StringFixed(2),
		"entry_value_inr": domain.FormatINR(res.Position.EntryValue),
	})
}

// Close settles the open position at current market prices.
// POST /api/paper/close
func (h *PaperHandler) Close(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Close(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"trade":   res.Trade,
		"pnl":     res.Trade.PnL.StringFixed(2),
		"pnl_inr": domain.FormatINR(res.Trade.PnL),
	})
}

// Reset wipes the ledger back to starting cash.
// POST /api/paper/reset
func (h *PaperHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reset(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
