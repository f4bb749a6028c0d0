// Package quote provides the broker-facing quote gateway: session-cached
// price fetching with a hard guarantee that no live order ever leaves the
// process.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/platform/smartapi"
)

// brokerAPI is the slice of the SmartAPI client the gateway needs.
type brokerAPI interface {
	Login(ctx context.Context, totp string) (smartapi.Session, error)
	FullQuote(ctx context.Context, jwt, exchange, symbolToken string) (smartapi.PriceSnapshot, error)
}

// totpSource yields the current one-time password for login.
type totpSource interface {
	Now() string
}

// Gateway implements domain.QuoteGateway against the SmartAPI broker. A
// single session token is cached for sessionTTL and refreshed on expiry or
// when the broker rejects it. All broker calls are serialized through one
// mutex; the broker rate-limits aggressively and the engine's call volume
// is tiny.
type Gateway struct {
	api        brokerAPI
	totp       totpSource
	sessionTTL time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	session   smartapi.Session
	sessionAt time.Time

	now func() time.Time
}

func NewGateway(api brokerAPI, totp totpSource, sessionTTL time.Duration, logger *slog.Logger) *Gateway {
	if sessionTTL <= 0 {
		sessionTTL = 40 * time.Minute
	}
	return &Gateway{
		api:        api,
		totp:       totp,
		sessionTTL: sessionTTL,
		logger:     logger.With(slog.String("component", "quote_gateway")),
		now:        time.Now,
	}
}

// FetchQuote returns a price snapshot for spec. A quote the broker cannot
// price right now comes back with Fresh=false and no error; transport and
// session failures that survive one re-login are errors.
func (g *Gateway) FetchQuote(ctx context.Context, spec domain.SymbolSpec) (domain.Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	jwt, err := g.ensureSession(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	snap, err := g.api.FullQuote(ctx, jwt, spec.Exchange, spec.Token)
	if isSessionError(err) {
		g.logger.Warn("session rejected, re-authenticating",
			slog.String("symbol", spec.TradingSymbol))
		g.session = smartapi.Session{}
		jwt, err = g.ensureSession(ctx)
		if err != nil {
			return domain.Quote{}, err
		}
		snap, err = g.api.FullQuote(ctx, jwt, spec.Exchange, spec.Token)
	}
	if err != nil {
		return domain.Quote{}, fmt.Errorf("quote: fetch %s: %w", spec.TradingSymbol, err)
	}

	return g.toQuote(spec, snap), nil
}

// PlaceOrder always refuses. The paper engine records fills in the ledger;
// nothing in this process is allowed to reach the broker's order endpoints.
func (g *Gateway) PlaceOrder(ctx context.Context, spec domain.SymbolSpec, side domain.LegSide, lots int) error {
	g.logger.Error("live order blocked",
		slog.String("symbol", spec.TradingSymbol),
		slog.String("side", string(side)),
		slog.Int("lots", lots))
	return domain.ErrLiveOrderForbidden
}

// ensureSession returns a valid JWT, logging in when the cached session is
// absent or older than sessionTTL. Callers hold g.mu.
func (g *Gateway) ensureSession(ctx context.Context) (string, error) {
	if g.session.JWTToken != "" && g.now().Sub(g.sessionAt) < g.sessionTTL {
		return g.session.JWTToken, nil
	}

	sess, err := g.api.Login(ctx, g.totp.Now())
	if err != nil {
		return "", fmt.Errorf("quote: login: %w", err)
	}

	g.session = sess
	g.sessionAt = g.now()
	g.logger.Info("broker session established")
	return sess.JWTToken, nil
}

func (g *Gateway) toQuote(spec domain.SymbolSpec, snap smartapi.PriceSnapshot) domain.Quote {
	q := domain.Quote{
		Symbol:    spec,
		FetchedAt: g.now(),
		Fresh:     snap.Found,
	}
	if !snap.Found {
		return q
	}

	q.LTP = decimal.NewFromFloat(snap.LTP)
	q.Bid = decimal.NewFromFloat(snap.Bid)
	q.Ask = decimal.NewFromFloat(snap.Ask)

	// Mid of the touch when both sides are quoted, last trade otherwise.
	if snap.Bid > 0 && snap.Ask > 0 {
		q.Mid = q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	} else {
		q.Mid = q.LTP
	}
	return q
}

func isSessionError(err error) bool {
	var sessErr *domain.SessionError
	return errors.As(err, &sessErr)
}
