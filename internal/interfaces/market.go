package interfaces

import (
	"context"

	"tda-gateway/internal/stream"
	"tda-gateway/internal/types"
)

// MarketData is the capability surface consumers depend on instead of
// the concrete client.
type MarketData interface {
	FetchAccessToken(ctx context.Context) error
	GetQuote(ctx context.Context, symbol string) (types.Quote, error)
	GetPriceHistory(ctx context.Context, symbol string,
		periodType types.PeriodType, periodAmt int,
		freqType types.FrequencyType, freqAmt int, extendedHours bool) (types.PriceHistory, error)
	GetAccount(ctx context.Context, accountID string) (types.Account, error)
	GetAllAccounts(ctx context.Context) (types.Account, error)
	GetWatchlistsByAccount(ctx context.Context, accountID string) ([]types.Watchlist, error)
	PlaceOrder(ctx context.Context, order types.Order) error
}

// Streamer manages the persistent real-time subscription session.
type Streamer interface {
	StartSession(ctx context.Context, ticker string, sink stream.Sink) error
	SendLogoutRequest(ctx context.Context) error
}
