// Package tda is the single point of contact with the brokerage API.
// It owns the credential and token state, builds and issues the REST
// calls, and drives the streaming session.
package tda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tda-gateway/internal/logger"
	"tda-gateway/internal/stream"
	"tda-gateway/internal/types"
)

type Params struct {
	APIKey       string
	RefreshToken string

	// BaseURL overrides the production API base, mainly for tests.
	BaseURL string
	// StreamerScheme overrides the wss:// scheme, mainly for tests.
	StreamerScheme string

	Timeout time.Duration
}

// Client issues REST calls and drives the streaming transport. REST
// operations are synchronous, blocking calls with no internal retry;
// callers impose their own timeout or cancellation through ctx, or
// layer util.Retry above the client.
type Client struct {
	p          Params
	httpClient *http.Client

	authMu         sync.Mutex
	accessToken    string
	refreshToken   string
	hasAccessToken bool

	// principalsMu is the fetch-once guard: concurrent first access
	// performs a single fetch, and Invalidate forces a refetch.
	principalsMu  sync.Mutex
	principals    types.UserPrincipals
	hasPrincipals bool

	socket *stream.Socket
}

func New(p Params) *Client {
	if p.BaseURL == "" {
		p.BaseURL = defaultAPIBase
	}
	if p.StreamerScheme == "" {
		p.StreamerScheme = "wss"
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	return &Client{
		p:            p,
		refreshToken: p.RefreshToken,
		httpClient:   &http.Client{Timeout: p.Timeout},
	}
}

// FetchAccessToken exchanges the refresh token for an access token. On
// success both stored tokens are replaced and the client becomes
// authenticated; on failure the prior token state is left untouched.
func (c *Client) FetchAccessToken(ctx context.Context) error {
	form := "grant_type=refresh_token&refresh_token=" +
		url.QueryEscape(c.refreshToken) + "&client_id=" + c.p.APIKey

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.p.BaseURL+tokenPath, strings.NewReader(form))
	if err != nil {
		return &TransportError{Op: "FetchAccessToken", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "FetchAccessToken", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AuthError{Op: "FetchAccessToken", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "FetchAccessToken", Err: err}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &AuthError{Op: "FetchAccessToken", Err: &ParseError{Op: "FetchAccessToken", Err: err}}
	}
	if payload.AccessToken == "" {
		return &AuthError{Op: "FetchAccessToken", Err: fmt.Errorf("response missing access_token")}
	}

	c.authMu.Lock()
	c.accessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		c.refreshToken = payload.RefreshToken
	}
	c.hasAccessToken = true
	c.authMu.Unlock()

	logger.Info(ctx, "Access token refreshed")
	return nil
}

// Authenticated reports whether a token exchange has succeeded. Token
// staleness is not tracked in-band; an expired token shows up as an
// AuthError on the next authorized call.
func (c *Client) Authenticated() bool {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.hasAccessToken
}

func (c *Client) bearerToken() (string, bool) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.accessToken, c.hasAccessToken
}

// sendRequest performs an unauthenticated or apikey-only GET.
func (c *Client) sendRequest(ctx context.Context, op, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return c.do(op, req)
}

// sendAuthorizedRequest performs a bearer-token GET. An authorized
// request must not be attempted before a successful token exchange.
func (c *Client) sendAuthorizedRequest(ctx context.Context, op, endpoint string) ([]byte, error) {
	token, ok := c.bearerToken()
	if !ok {
		return nil, &AuthError{Op: op, Err: ErrNotAuthenticated}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(op, req)
}

// postAuthorizedRequest performs a bearer-token POST with a
// pre-serialized body.
func (c *Client) postAuthorizedRequest(ctx context.Context, op, endpoint, body string) error {
	token, ok := c.bearerToken()
	if !ok {
		return &AuthError{Op: op, Err: ErrNotAuthenticated}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(op, req)
	return err
}

func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	logger.Request(req.Context(), req.URL.Path, req.Method, resp.StatusCode, "op", op)
	return body, nil
}

// ensurePrincipals populates the UserPrincipals cache on first need.
func (c *Client) ensurePrincipals(ctx context.Context) (types.UserPrincipals, error) {
	c.principalsMu.Lock()
	defer c.principalsMu.Unlock()
	if c.hasPrincipals {
		return c.principals, nil
	}

	body, err := c.sendAuthorizedRequest(ctx, "GetUserPrincipals", c.p.BaseURL+userPrincipalsPath)
	if err != nil {
		return types.UserPrincipals{}, err
	}
	principals, err := ParseUserPrincipals(body)
	if err != nil {
		return types.UserPrincipals{}, err
	}
	c.principals = principals
	c.hasPrincipals = true
	logger.Info(ctx, "User principals cached",
		"accounts", len(principals.Accounts), "kind", int(principals.Kind))
	return principals, nil
}

// GetUserPrincipals returns the cached principals, fetching them on
// first use.
func (c *Client) GetUserPrincipals(ctx context.Context) (types.UserPrincipals, error) {
	return c.ensurePrincipals(ctx)
}

// InvalidatePrincipals drops the cached principals so the next access
// refetches them.
func (c *Client) InvalidatePrincipals() {
	c.principalsMu.Lock()
	c.hasPrincipals = false
	c.principals = types.UserPrincipals{}
	c.principalsMu.Unlock()
}

// GetQuote requests quote data for one instrument symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (types.Quote, error) {
	endpoint := c.p.BaseURL + substitute(quotePath, map[string]string{
		"ticker": symbol,
		"apikey": c.p.APIKey,
	})
	body, err := c.sendRequest(ctx, "GetQuote", endpoint)
	if err != nil {
		return types.Quote{}, err
	}
	return ParseQuote(body)
}

// GetPriceHistory requests an OHLCV candle series.
func (c *Client) GetPriceHistory(ctx context.Context, symbol string,
	periodType types.PeriodType, periodAmt int,
	freqType types.FrequencyType, freqAmt int, extendedHours bool) (types.PriceHistory, error) {

	endpoint := c.p.BaseURL + substitute(priceHistoryPath, map[string]string{
		"ticker":        symbol,
		"apikey":        c.p.APIKey,
		"periodType":    periodType.APIValue(),
		"period":        types.PeriodAmountValue(periodAmt),
		"frequencyType": freqType.APIValue(),
		"frequency":     types.FrequencyAmountValue(freqAmt),
		"ext":           strconv.FormatBool(extendedHours),
	})
	body, err := c.sendRequest(ctx, "GetPriceHistory", endpoint)
	if err != nil {
		return types.PriceHistory{}, err
	}
	return ParsePriceHistory(ctx, body, symbol, freqAmt)
}

// OptionChainRequest selects the option chain slice to fetch.
type OptionChainRequest struct {
	Ticker        string
	ContractType  string
	StrikeCount   string
	IncludeQuotes bool
	Strategy      string
	Range         string
	ExpMonth      string
	OptionType    string
}

// GetOptionChain requests the option chain for an underlying.
func (c *Client) GetOptionChain(ctx context.Context, req OptionChainRequest) (types.OptionChain, error) {
	includeQuotes := "FALSE"
	if req.IncludeQuotes {
		includeQuotes = "TRUE"
	}
	endpoint := c.p.BaseURL + substitute(optionChainPath, map[string]string{
		"apikey":        c.p.APIKey,
		"ticker":        req.Ticker,
		"contractType":  req.ContractType,
		"strikeCount":   req.StrikeCount,
		"includeQuotes": includeQuotes,
		"strategy":      req.Strategy,
		"range":         req.Range,
		"expMonth":      req.ExpMonth,
		"optionType":    req.OptionType,
	})
	body, err := c.sendRequest(ctx, "GetOptionChain", endpoint)
	if err != nil {
		return types.OptionChain{}, err
	}
	return ParseOptionChain(body)
}

// GetAccount requests one account with positions and orders.
func (c *Client) GetAccount(ctx context.Context, accountID string) (types.Account, error) {
	if _, err := c.ensurePrincipals(ctx); err != nil {
		return types.Account{}, err
	}
	endpoint := c.p.BaseURL + substitute(accountPath, map[string]string{"accountNum": accountID})
	body, err := c.sendAuthorizedRequest(ctx, "GetAccount", endpoint)
	if err != nil {
		return types.Account{}, err
	}
	return ParseAccount(body)
}

// GetAllAccounts requests every account on the key.
func (c *Client) GetAllAccounts(ctx context.Context) (types.Account, error) {
	if _, err := c.ensurePrincipals(ctx); err != nil {
		return types.Account{}, err
	}
	body, err := c.sendAuthorizedRequest(ctx, "GetAllAccounts", c.p.BaseURL+allAccountsPath)
	if err != nil {
		return types.Account{}, err
	}
	return ParseAllAccounts(body)
}

// GetAllAccountIDs collects the account ids present in the principals,
// honouring the reduced primary-account fallback.
func (c *Client) GetAllAccountIDs(ctx context.Context) ([]string, error) {
	principals, err := c.ensurePrincipals(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, account := range principals.Accounts {
		for _, key := range []string{"accountId", "primaryAccountId"} {
			if id, ok := account[key]; ok && id != "" {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

// GetWatchlistsByAccount requests the watchlists owned by an account.
func (c *Client) GetWatchlistsByAccount(ctx context.Context, accountID string) ([]types.Watchlist, error) {
	endpoint := c.p.BaseURL + substitute(watchlistsPath, map[string]string{"accountNum": accountID})
	body, err := c.sendAuthorizedRequest(ctx, "GetWatchlistsByAccount", endpoint)
	if err != nil {
		return nil, err
	}
	return ParseWatchlistData(ctx, body)
}

// GetOrder retrieves one order by account and order id.
func (c *Client) GetOrder(ctx context.Context, accountID, orderID string) (json.RawMessage, error) {
	endpoint := c.p.BaseURL + substitute(orderPath, map[string]string{
		"accountId": accountID,
		"orderId":   orderID,
	})
	return c.sendAuthorizedRequest(ctx, "GetOrder", endpoint)
}

// GetOrdersByQuery retrieves orders filtered by time range and status.
func (c *Client) GetOrdersByQuery(ctx context.Context, accountID string,
	maxResults int, fromEnteredTime, toEnteredTime string, status types.OrderStatus) (json.RawMessage, error) {

	endpoint := c.p.BaseURL + substitute(ordersByQueryPath, map[string]string{
		"accountId":  accountID,
		"maxResults": strconv.Itoa(maxResults),
		"from":       fromEnteredTime,
		"to":         toEnteredTime,
		"status":     status.APIValue(),
	})
	return c.sendAuthorizedRequest(ctx, "GetOrdersByQuery", endpoint)
}

// PlaceOrder submits a pre-serialized order payload for the account.
func (c *Client) PlaceOrder(ctx context.Context, order types.Order) error {
	endpoint := c.p.BaseURL + substitute(placeOrderPath, map[string]string{"accountId": order.AccountID})
	if err := c.postAuthorizedRequest(ctx, "PlaceOrder", endpoint, order.Payload); err != nil {
		return err
	}
	logger.Info(ctx, "Order placed", "account", order.AccountID)
	return nil
}
