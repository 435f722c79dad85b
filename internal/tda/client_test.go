package tda

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tda-gateway/internal/types"
)

const principalsFixture = `{
	"accounts": [
		{"accountId": "123456789", "company": "AMER", "segment": "AMER", "accountCdDomainId": "A000000011111111"}
	],
	"streamerInfo": {
		"streamerSocketUrl": "streamer.example.com",
		"appId": "APP123",
		"userGroup": "ACCT",
		"accessLevel": "ACCT",
		"acl": "AcctAccess",
		"token": "streamtoken",
		"tokenTimestamp": "2021-08-10T14:57:11+0000"
	}
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(Params{
		APIKey:       "KEY123",
		RefreshToken: "refresh-old",
		BaseURL:      server.URL,
	})
	return client, server
}

func authenticate(t *testing.T, client *Client) {
	t.Helper()
	client.authMu.Lock()
	client.accessToken = "token-1"
	client.hasAccessToken = true
	client.authMu.Unlock()
}

func TestFetchAccessToken(t *testing.T) {
	var gotContentType string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"access_token":"access-new","refresh_token":"refresh-new"}`))
	}))

	if client.Authenticated() {
		t.Fatal("Client should not start authenticated")
	}
	if err := client.FetchAccessToken(context.Background()); err != nil {
		t.Fatalf("FetchAccessToken returned error: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Expected form content type, got %s", gotContentType)
	}
	if !client.Authenticated() {
		t.Error("Expected client to be authenticated")
	}
	if client.accessToken != "access-new" || client.refreshToken != "refresh-new" {
		t.Errorf("Token state not updated: %s / %s", client.accessToken, client.refreshToken)
	}
}

func TestFetchAccessTokenRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.FetchAccessToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", authErr.StatusCode)
	}
	if client.Authenticated() {
		t.Error("Failed exchange must leave client unauthenticated")
	}
}

func TestFetchAccessTokenMissingToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":1800}`))
	}))

	err := client.FetchAccessToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if client.Authenticated() {
		t.Error("Token state must be unchanged after a bad response")
	}
}

func TestAuthorizedRequestWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request should reach the server")
	}))

	_, err := client.GetWatchlistsByAccount(context.Background(), "123456789")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAuthorizedRequestRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	authenticate(t, client)

	_, err := client.GetWatchlistsByAccount(context.Background(), "123456789")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if authErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", authErr.StatusCode)
	}
}

func TestGetQuoteEndpoint(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/marketdata/SPY/quotes" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "KEY123" {
			t.Errorf("Expected apikey query, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"SPY":{"lastPrice":450.12}}`))
	}))

	quote, err := client.GetQuote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetQuote returned error: %v", err)
	}
	if quote.Symbol != "SPY" || quote.Variables["lastPrice"] != "450.12" {
		t.Errorf("Unexpected quote: %+v", quote)
	}
}

func TestGetPriceHistoryEndpoint(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("periodType") != "day" || q.Get("period") != "2" {
			t.Errorf("Unexpected period query: %s", r.URL.RawQuery)
		}
		if q.Get("frequencyType") != "minute" || q.Get("frequency") != "5" {
			t.Errorf("Unexpected frequency query: %s", r.URL.RawQuery)
		}
		if q.Get("needExtendedHoursData") != "false" {
			t.Errorf("Unexpected extended hours flag: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"candles":[{"open":1,"high":2,"low":0.5,"close":1.5,"volume":100,"datetime":1628607431000}]}`))
	}))

	history, err := client.GetPriceHistory(context.Background(), "SPY",
		types.PeriodDay, 2, types.FrequencyMinute, 5, false)
	if err != nil {
		t.Fatalf("GetPriceHistory returned error: %v", err)
	}
	if len(history.Candles) != 1 || len(history.ByFrequency[5]) != 1 {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestGetOptionChainEndpoint(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "SPY" || q.Get("includeQuotes") != "TRUE" {
			t.Errorf("Unexpected chain query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"callExpDateMap":{},"putExpDateMap":{}}`))
	}))

	_, err := client.GetOptionChain(context.Background(), OptionChainRequest{
		Ticker:        "SPY",
		ContractType:  "ALL",
		StrikeCount:   "10",
		IncludeQuotes: true,
		Strategy:      "SINGLE",
		Range:         "ALL",
		ExpMonth:      "ALL",
		OptionType:    "ALL",
	})
	if err != nil {
		t.Fatalf("GetOptionChain returned error: %v", err)
	}
}

func TestPrincipalsFetchedOnce(t *testing.T) {
	fetches := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Write([]byte(principalsFixture))
	}))
	authenticate(t, client)

	ctx := context.Background()
	first, err := client.GetUserPrincipals(ctx)
	if err != nil {
		t.Fatalf("GetUserPrincipals returned error: %v", err)
	}
	if _, err := client.GetUserPrincipals(ctx); err != nil {
		t.Fatalf("Second GetUserPrincipals returned error: %v", err)
	}
	if fetches != 1 {
		t.Errorf("Expected a single principals fetch, got %d", fetches)
	}
	if first.Active["accountId"] != "123456789" {
		t.Errorf("Unexpected active account: %v", first.Active)
	}

	client.InvalidatePrincipals()
	if _, err := client.GetUserPrincipals(ctx); err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	if fetches != 2 {
		t.Errorf("Expected refetch after invalidation, got %d fetches", fetches)
	}
}

func TestGetAllAccountIDs(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[{"accountId":"111"},{"primaryAccountId":"222"},{"nickname":"empty"}]}`))
	}))
	authenticate(t, client)

	ids, err := client.GetAllAccountIDs(context.Background())
	if err != nil {
		t.Fatalf("GetAllAccountIDs returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "111" || ids[1] != "222" {
		t.Errorf("Unexpected ids: %v", ids)
	}
}

func TestPlaceOrder(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/123456789/orders" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusCreated)
	}))
	authenticate(t, client)

	order := types.Order{AccountID: "123456789", Payload: `{"orderType":"MARKET"}`}
	if err := client.PlaceOrder(context.Background(), order); err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if gotBody != order.Payload {
		t.Errorf("Expected payload %s, got %s", order.Payload, gotBody)
	}
}

func TestServerErrorIsTransport(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.GetQuote(context.Background(), "SPY")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}
