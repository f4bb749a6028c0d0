// Package smartapi is the REST client for the Angel One SmartAPI broker
// endpoints used for login and market data. It never submits orders.
package smartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

const (
	loginPath = "/rest/auth/angelbroking/user/v1/loginByPassword"
	ltpPath   = "/rest/secure/angelbroking/order/v1/getLtpData"
	quotePath = "/rest/secure/angelbroking/market/v1/quote/"
)

// Error codes SmartAPI returns when a session token is missing, malformed
// or expired. These trigger a re-login in the quote gateway.
var sessionErrorCodes = map[string]struct{}{
	"AG8001": {}, // invalid token
	"AG8002": {}, // token expired
	"AG8003": {}, // token missing
	"AB8050": {}, // invalid refresh token
	"AB8051": {}, // refresh token expired
	"AB1010": {}, // session not found
}

// Client is the REST client for the SmartAPI trading endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	clientCode string
	pin        string
	httpClient *http.Client
}

// NewClient creates a SmartAPI client. baseURL is the API root, e.g.
// "https://apiconnect.angelone.in". apiKey goes into the X-PrivateKey header
// on every request.
func NewClient(baseURL, apiKey, clientCode, pin string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		clientCode: clientCode,
		pin:        pin,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login authenticates with the client code, PIN and a freshly generated TOTP,
// returning the session tokens.
func (c *Client) Login(ctx context.Context, totp string) (Session, error) {
	body, err := c.doRequest(ctx, loginPath, "", loginRequest{
		ClientCode: c.clientCode,
		Password:   c.pin,
		TOTP:       totp,
	})
	if err != nil {
		return Session{}, fmt.Errorf("smartapi: login: %w", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, fmt.Errorf("smartapi: decode login response: %w", err)
	}
	if err := resp.envelope.check(); err != nil {
		return Session{}, fmt.Errorf("smartapi: login: %w", err)
	}
	if resp.Data.JWTToken == "" {
		return Session{}, fmt.Errorf("smartapi: login succeeded but no token returned")
	}

	return Session{
		JWTToken:     resp.Data.JWTToken,
		RefreshToken: resp.Data.RefreshToken,
		FeedToken:    resp.Data.FeedToken,
	}, nil
}

// LTP returns the last traded price for a single instrument.
func (c *Client) LTP(ctx context.Context, jwt, exchange, tradingSymbol, symbolToken string) (float64, error) {
	body, err := c.doRequest(ctx, ltpPath, jwt, ltpRequest{
		Exchange:      exchange,
		TradingSymbol: tradingSymbol,
		SymbolToken:   symbolToken,
	})
	if err != nil {
		return 0, fmt.Errorf("smartapi: ltp %s: %w", tradingSymbol, err)
	}

	var resp ltpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("smartapi: decode ltp response: %w", err)
	}
	if err := resp.envelope.check(); err != nil {
		return 0, fmt.Errorf("smartapi: ltp %s: %w", tradingSymbol, err)
	}

	return resp.Data.LTP, nil
}

// FullQuote returns a full-depth price snapshot for a single instrument.
// When the exchange reports the token as unfetched the snapshot comes back
// with Found=false and no error.
func (c *Client) FullQuote(ctx context.Context, jwt, exchange, symbolToken string) (PriceSnapshot, error) {
	body, err := c.doRequest(ctx, quotePath, jwt, quoteRequest{
		Mode:           "FULL",
		ExchangeTokens: map[string][]string{exchange: {symbolToken}},
	})
	if err != nil {
		return PriceSnapshot{}, fmt.Errorf("smartapi: quote %s: %w", symbolToken, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PriceSnapshot{}, fmt.Errorf("smartapi: decode quote response: %w", err)
	}
	if err := resp.envelope.check(); err != nil {
		return PriceSnapshot{}, fmt.Errorf("smartapi: quote %s: %w", symbolToken, err)
	}

	if len(resp.Data.Fetched) == 0 {
		return PriceSnapshot{SymbolToken: symbolToken}, nil
	}

	entry := resp.Data.Fetched[0]
	snap := PriceSnapshot{
		Exchange:      entry.Exchange,
		TradingSymbol: entry.TradingSymbol,
		SymbolToken:   entry.SymbolToken,
		LTP:           entry.LTP,
		Found:         true,
	}
	if len(entry.Depth.Buy) > 0 {
		snap.Bid = entry.Depth.Buy[0].Price
	}
	if len(entry.Depth.Sell) > 0 {
		snap.Ask = entry.Depth.Sell[0].Price
	}
	return snap, nil
}

// check maps a failed envelope to an error, classifying session-level
// failures as domain.SessionError so callers can re-login.
func (e envelope) check() error {
	if e.Status {
		return nil
	}
	err := fmt.Errorf("api error %s: %s", e.ErrorCode, e.Message)
	if _, ok := sessionErrorCodes[e.ErrorCode]; ok {
		return &domain.SessionError{Code: e.ErrorCode, Err: err}
	}
	return err
}

// doRequest builds, sends and reads a SmartAPI POST request. jwt may be
// empty for unauthenticated endpoints.
func (c *Client) doRequest(ctx context.Context, path, jwt string, reqBody any) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", "127.0.0.1")
	req.Header.Set("X-ClientPublicIP", "127.0.0.1")
	req.Header.Set("X-MACAddress", "00:00:00:00:00:00")
	req.Header.Set("X-PrivateKey", c.apiKey)
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to errors. 401/403 are treated
// as session failures regardless of body content.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr envelope
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.SessionError{
			Code: apiErr.ErrorCode,
			Err:  fmt.Errorf("HTTP %d: %s", statusCode, apiErr.Message),
		}
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited: %s (%s)", apiErr.Message, apiErr.ErrorCode)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s (%s)", apiErr.Message, apiErr.ErrorCode)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.ErrorCode)
	}
}
