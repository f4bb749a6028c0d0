package smartapi

// envelope is the common response wrapper every SmartAPI endpoint returns.
type envelope struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorcode"`
}

// loginRequest is the body for the loginByPassword endpoint. TOTP is the
// current six-digit one-time password, regenerated per login attempt.
type loginRequest struct {
	ClientCode string `json:"clientcode"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
}

type loginResponse struct {
	envelope
	Data struct {
		JWTToken     string `json:"jwtToken"`
		RefreshToken string `json:"refreshToken"`
		FeedToken    string `json:"feedToken"`
	} `json:"data"`
}

// ltpRequest asks for the last traded price of a single instrument.
type ltpRequest struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
}

type ltpResponse struct {
	envelope
	Data struct {
		Exchange      string  `json:"exchange"`
		TradingSymbol string  `json:"tradingsymbol"`
		SymbolToken   string  `json:"symboltoken"`
		LTP           float64 `json:"ltp"`
	} `json:"data"`
}

// quoteRequest asks for full market depth for a batch of tokens, keyed by
// exchange segment.
type quoteRequest struct {
	Mode           string              `json:"mode"`
	ExchangeTokens map[string][]string `json:"exchangeTokens"`
}

type depthLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

type quoteEntry struct {
	Exchange      string  `json:"exchange"`
	TradingSymbol string  `json:"tradingSymbol"`
	SymbolToken   string  `json:"symbolToken"`
	LTP           float64 `json:"ltp"`
	Depth         struct {
		Buy  []depthLevel `json:"buy"`
		Sell []depthLevel `json:"sell"`
	} `json:"depth"`
}

type quoteResponse struct {
	envelope
	Data struct {
		Fetched   []quoteEntry `json:"fetched"`
		Unfetched []struct {
			SymbolToken string `json:"symbolToken"`
			Message     string `json:"message"`
		} `json:"unfetched"`
	} `json:"data"`
}

// Session holds the tokens returned by a successful login.
type Session struct {
	JWTToken     string
	RefreshToken string
	FeedToken    string
}

// PriceSnapshot is the platform-level view of a quote, before the gateway
// converts it into domain money types.
type PriceSnapshot struct {
	Exchange      string
	TradingSymbol string
	SymbolToken   string
	LTP           float64
	Bid           float64
	Ask           float64
	Found         bool
}
