package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// SymbolResolver maps a query-string trading symbol to a concrete spec.
type SymbolResolver interface {
	ResolveSymbol(symbol string) (domain.SymbolSpec, error)
}

// QuoteHandler serves ad-hoc price lookups for diagnostics.
type QuoteHandler struct {
	gateway  domain.QuoteGateway
	resolver SymbolResolver
}

func NewQuoteHandler(gateway domain.QuoteGateway, resolver SymbolResolver) *QuoteHandler {
	return &QuoteHandler{gateway: gateway, resolver: resolver}
}

// GetQuote responds with a snapshot for the given trading symbol. An empty
// symbol quotes the underlying index.
// GET /api/quote?symbol=NIFTY...
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	spec, err := h.resolver.ResolveSymbol(symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q, err := h.gateway.FetchQuote(r.Context(), spec)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"symbol":     q.Symbol,
		"fresh":      q.Fresh,
		"ltp":        q.LTP.String(),
		"bid":        q.Bid.String(),
		"ask":        q.Ask.String(),
		"mid":        q.Mid.String(),
		"fetched_at": q.FetchedAt.Format(time.RFC3339),
	})
}
