package types

// Candle is a single OHLCV bar. RawDatetime is the epoch-millisecond
// timestamp as delivered by the service; Datetime is the formatted
// local representation derived from it.
type Candle struct {
	Open, High, Low, Close, Volume float64
	RawDatetime                    int64
	Datetime                       string
}

// PriceHistory holds the candle series for one ticker. Candles keeps
// the unfiltered series in source order; ByFrequency indexes the same
// candles by the requested frequency amount.
type PriceHistory struct {
	Ticker      string
	Candles     []Candle
	ByFrequency map[int][]Candle
	Initialized bool
}

func (p *PriceHistory) AddCandle(c Candle) {
	p.Candles = append(p.Candles, c)
}

func (p *PriceHistory) AddCandleByFrequency(c Candle, freq int) {
	if p.ByFrequency == nil {
		p.ByFrequency = make(map[int][]Candle)
	}
	p.ByFrequency[freq] = append(p.ByFrequency[freq], c)
}

// Quote carries the raw quote fields for one symbol.
type Quote struct {
	Symbol    string
	Variables map[string]string
}

func (q *Quote) SetVariable(key, value string) {
	if q.Variables == nil {
		q.Variables = make(map[string]string)
	}
	q.Variables[key] = value
}

// StrikeEntry is one strike row inside an expiry group. Contracts holds
// the raw contract fields of every contract listed at that strike.
type StrikeEntry struct {
	StrikePrice string
	Contracts   []map[string]string
}

// ExpiryGroup is the ordered set of strikes for one expiration date.
type ExpiryGroup struct {
	Datetime string
	Strikes  []StrikeEntry
}

// OptionChain organizes contracts by expiration date then strike price,
// preserving the order of both as they appeared in the response.
type OptionChain struct {
	Calls      []ExpiryGroup
	Puts       []ExpiryGroup
	Underlying map[string]string
	Variables  map[string]string
}

func (o *OptionChain) SetUnderlyingVariable(key, value string) {
	if o.Underlying == nil {
		o.Underlying = make(map[string]string)
	}
	o.Underlying[key] = value
}

func (o *OptionChain) SetChainVariable(key, value string) {
	if o.Variables == nil {
		o.Variables = make(map[string]string)
	}
	o.Variables[key] = value
}

// PositionBalances pairs an instrument symbol with its position-level
// balance fields.
type PositionBalances struct {
	Symbol   string
	Balances map[string]string
}

// Account holds one account's flattened variables, its positions and the
// per-symbol balances. Built fresh on every parse; never merged.
type Account struct {
	Variables        map[string]string
	BalanceVariables map[string]string
	Positions        []map[string]string
	PositionBalances []PositionBalances
}

func (a *Account) SetVariable(key, value string) {
	if a.Variables == nil {
		a.Variables = make(map[string]string)
	}
	a.Variables[key] = value
}

func (a *Account) SetBalanceVariable(key, value string) {
	if a.BalanceVariables == nil {
		a.BalanceVariables = make(map[string]string)
	}
	a.BalanceVariables[key] = value
}

// PrincipalsKind tags which parsing path produced a UserPrincipals
// value: the full accounts list or the reduced primary-account fallback.
type PrincipalsKind int

const (
	PrincipalsFull PrincipalsKind = iota
	PrincipalsMinimal
)

// StreamerInfo is the streaming-connection metadata issued alongside the
// user's accounts.
type StreamerInfo struct {
	SocketURL      string
	AppID          string
	UserGroup      string
	AccessLevel    string
	ACL            string
	Token          string
	TokenTimestamp string
}

// UserPrincipals describes the authenticated user's accounts and the
// parameters required to initiate a streaming session.
type UserPrincipals struct {
	Kind     PrincipalsKind
	Accounts []map[string]string
	Active   map[string]string
	Streamer StreamerInfo
}

// WatchlistInstrument is one tracked instrument inside a watchlist.
type WatchlistInstrument struct {
	Symbol      string
	Description string
	Type        string
}

// Watchlist is a named, account-owned list of instruments. Variables
// collects any non-instrument item fields.
type Watchlist struct {
	ID          string
	Name        string
	AccountID   string
	Instruments []WatchlistInstrument
	Variables   map[string]string
}

func (w *Watchlist) AddInstrument(symbol, description, assetType string) {
	w.Instruments = append(w.Instruments, WatchlistInstrument{
		Symbol:      symbol,
		Description: description,
		Type:        assetType,
	})
}

func (w *Watchlist) SetVariable(key, value string) {
	if w.Variables == nil {
		w.Variables = make(map[string]string)
	}
	w.Variables[key] = value
}

// Order is an opaque, pre-serialized order payload bound to an account.
type Order struct {
	AccountID string
	Payload   string
}

// Headline is a scraped news item for a symbol.
type Headline struct {
	Symbol      string
	Title       string
	URL         string
	Source      string
	PublishedAt string
}
