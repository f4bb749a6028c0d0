package handler

import (
	"context"
	"net/http"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// TradeLister is the slice of the engine the history endpoint needs.
type TradeLister interface {
	Trades(ctx context.Context, limit int) ([]domain.Trade, error)
}

// TradesHandler serves closed-trade history.
type TradesHandler struct {
	engine TradeLister
}

func NewTradesHandler(eng TradeLister) *TradesHandler {
	return &TradesHandler{engine: eng}
}

// ListTrades responds with the most recent closed trades, newest first.
// GET /api/trades?limit=50
func (h *TradesHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	trades, err := h.engine.Trades(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"count":  len(trades),
		"trades": trades,
	})
}
