package tda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tda-gateway/internal/logger"
	"tda-gateway/internal/types"
)

// The parser maps untyped response trees onto the domain models. It is
// total over well-formed input: unknown keys are ignored, missing keys
// leave model fields at their defaults, and a bad field never aborts
// extraction of the rest. Only malformed top-level JSON is an error.

const candleTimeLayout = "Mon 02 Jan 2006 - 03:04:05PM"

// readTree decodes a response body into a generic key-value tree.
func readTree(op string, body []byte) (map[string]interface{}, error) {
	var tree map[string]interface{}
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	return tree, nil
}

// stringify renders a scalar leaf the way the service printed it.
// Objects and arrays have no scalar value and render empty.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}

// toFloat accepts both numeric and stringified numeric fields.
func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// member preserves the source position of one object entry. The generic
// map decoding loses key order, which would break the expiry and strike
// ordering invariants of the option chain.
type member struct {
	key string
	raw json.RawMessage
}

// objectMembers walks a JSON object token by token, returning its
// entries in source order.
func objectMembers(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var members []member
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, raw: value})
	}
	return members, nil
}

// ParseAccessToken scans a token-exchange response for the access token.
func ParseAccessToken(body []byte) (string, error) {
	tree, err := readTree("ParseAccessToken", body)
	if err != nil {
		return "", err
	}
	token, _ := tree["access_token"].(string)
	return token, nil
}

// ParseQuote reads the per-symbol quote fields. The response nests one
// object per requested symbol; fields of every symbol are collected and
// the first symbol key becomes the quote's symbol.
func ParseQuote(body []byte) (types.Quote, error) {
	var quote types.Quote
	tree, err := readTree("ParseQuote", body)
	if err != nil {
		return quote, err
	}
	for symbol, value := range tree {
		props, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		if quote.Symbol == "" {
			quote.Symbol = symbol
		}
		for key, prop := range props {
			quote.SetVariable(key, stringify(prop))
		}
	}
	return quote, nil
}

// ParsePriceHistory extracts the candle series for ticker. Every candle
// in the source appears in both the unfiltered series and the series
// indexed by freq, in source order. A candle field that fails numeric
// conversion is logged and left at zero without dropping the candle.
func ParsePriceHistory(ctx context.Context, body []byte, ticker string, freq int) (types.PriceHistory, error) {
	history := types.PriceHistory{Ticker: ticker}
	tree, err := readTree("ParsePriceHistory", body)
	if err != nil {
		return history, err
	}

	candles, _ := tree["candles"].([]interface{})
	for _, element := range candles {
		fields, ok := element.(map[string]interface{})
		if !ok {
			continue
		}
		var candle types.Candle
		for key, value := range fields {
			switch key {
			case "open", "high", "low", "close", "volume":
				f, err := toFloat(value)
				if err != nil {
					logger.Warn(ctx, "Skipping bad candle field", "ticker", ticker, "field", key, "error", err)
					continue
				}
				switch key {
				case "open":
					candle.Open = f
				case "high":
					candle.High = f
				case "low":
					candle.Low = f
				case "close":
					candle.Close = f
				case "volume":
					candle.Volume = f
				}
			case "datetime":
				ms, err := toInt64(value)
				if err != nil {
					logger.Warn(ctx, "Skipping bad candle datetime", "ticker", ticker, "error", err)
					continue
				}
				candle.RawDatetime = ms
				candle.Datetime = time.UnixMilli(ms).Format(candleTimeLayout)
			}
		}
		history.AddCandleByFrequency(candle, freq)
		history.AddCandle(candle)
	}
	history.Initialized = true
	return history, nil
}

// ParseUserPrincipals reads the accounts list and streamer metadata.
// When the accounts list is present the result is tagged PrincipalsFull;
// otherwise a reduced record is synthesized from primaryAccountId and
// tagged PrincipalsMinimal so callers can tell the two apart.
func ParseUserPrincipals(body []byte) (types.UserPrincipals, error) {
	var principals types.UserPrincipals
	tree, err := readTree("ParseUserPrincipals", body)
	if err != nil {
		return principals, err
	}

	if accounts, ok := tree["accounts"].([]interface{}); ok {
		principals.Kind = types.PrincipalsFull
		for _, element := range accounts {
			fields, ok := element.(map[string]interface{})
			if !ok {
				continue
			}
			account := make(map[string]string, len(fields))
			for key, value := range fields {
				account[key] = stringify(value)
			}
			principals.Accounts = append(principals.Accounts, account)
		}
	} else {
		principals.Kind = types.PrincipalsMinimal
		for key, value := range tree {
			if key == "primaryAccountId" {
				principals.Accounts = append(principals.Accounts,
					map[string]string{key: stringify(value)})
			}
		}
	}
	if len(principals.Accounts) > 0 {
		principals.Active = principals.Accounts[0]
	}

	if info, ok := tree["streamerInfo"].(map[string]interface{}); ok {
		principals.Streamer = types.StreamerInfo{
			SocketURL:      stringify(info["streamerSocketUrl"]),
			AppID:          stringify(info["appId"]),
			UserGroup:      stringify(info["userGroup"]),
			AccessLevel:    stringify(info["accessLevel"]),
			ACL:            stringify(info["acl"]),
			Token:          stringify(info["token"]),
			TokenTimestamp: stringify(info["tokenTimestamp"]),
		}
	}
	return principals, nil
}

// parseStrikeMap recurses expiry -> strike -> contract -> field,
// preserving the order of expiries and of strikes within each expiry.
func parseStrikeMap(raw json.RawMessage) ([]types.ExpiryGroup, error) {
	expiries, err := objectMembers(raw)
	if err != nil {
		return nil, err
	}

	groups := make([]types.ExpiryGroup, 0, len(expiries))
	for _, expiry := range expiries {
		group := types.ExpiryGroup{Datetime: expiry.key}
		strikes, err := objectMembers(expiry.raw)
		if err != nil {
			return nil, err
		}
		for _, strike := range strikes {
			entry := types.StrikeEntry{StrikePrice: strike.key}
			var contracts []map[string]interface{}
			if err := json.Unmarshal(strike.raw, &contracts); err != nil {
				continue
			}
			for _, contract := range contracts {
				fields := make(map[string]string, len(contract))
				for key, value := range contract {
					fields[key] = stringify(value)
				}
				entry.Contracts = append(entry.Contracts, fields)
			}
			group.Strikes = append(group.Strikes, entry)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ParseOptionChain builds the call and put strike maps plus the
// underlying and chain-level variable sets.
func ParseOptionChain(body []byte) (types.OptionChain, error) {
	var chain types.OptionChain
	var tree map[string]json.RawMessage
	if err := json.Unmarshal(body, &tree); err != nil {
		return chain, &ParseError{Op: "ParseOptionChain", Err: err}
	}

	for key, raw := range tree {
		switch key {
		case "callExpDateMap":
			groups, err := parseStrikeMap(raw)
			if err != nil {
				return chain, &ParseError{Op: "ParseOptionChain", Err: err}
			}
			chain.Calls = groups
		case "putExpDateMap":
			groups, err := parseStrikeMap(raw)
			if err != nil {
				return chain, &ParseError{Op: "ParseOptionChain", Err: err}
			}
			chain.Puts = groups
		case "underlying":
			var fields map[string]interface{}
			if err := json.Unmarshal(raw, &fields); err != nil {
				continue
			}
			for k, v := range fields {
				chain.SetUnderlyingVariable(k, stringify(v))
			}
		default:
			var value interface{}
			if err := json.Unmarshal(raw, &value); err != nil {
				continue
			}
			chain.SetChainVariable(key, stringify(value))
		}
	}
	return chain, nil
}

// parseAccountClass consumes one account-class object, distinguishing
// positions, currentBalances, and plain account variables.
func parseAccountClass(class map[string]interface{}, account *types.Account) {
	for key, value := range class {
		switch key {
		case "positions":
			positions, _ := value.([]interface{})
			for _, element := range positions {
				fields, ok := element.(map[string]interface{})
				if !ok {
					continue
				}
				balance := types.PositionBalances{Balances: make(map[string]string)}
				posFields := make(map[string]string)
				for fieldKey, fieldValue := range fields {
					if nested, ok := fieldValue.(map[string]interface{}); ok {
						for k, v := range nested {
							if k == "symbol" {
								balance.Symbol = stringify(v)
							}
							posFields[k] = stringify(v)
						}
						continue
					}
					balance.Balances[fieldKey] = stringify(fieldValue)
					posFields[fieldKey] = stringify(fieldValue)
				}
				account.Positions = append(account.Positions, posFields)
				account.PositionBalances = append(account.PositionBalances, balance)
			}
		case "currentBalances":
			balances, _ := value.(map[string]interface{})
			for k, v := range balances {
				account.SetBalanceVariable(k, stringify(v))
			}
		default:
			account.SetVariable(key, stringify(value))
		}
	}
}

// ParseAccount reads a single-account response.
func ParseAccount(body []byte) (types.Account, error) {
	var account types.Account
	tree, err := readTree("ParseAccount", body)
	if err != nil {
		return account, err
	}
	for _, value := range tree {
		if class, ok := value.(map[string]interface{}); ok {
			parseAccountClass(class, &account)
		}
	}
	return account, nil
}

// ParseAllAccounts reads the multi-account response, which wraps the
// single-account shape in one more array level.
func ParseAllAccounts(body []byte) (types.Account, error) {
	var account types.Account
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err != nil {
		return account, &ParseError{Op: "ParseAllAccounts", Err: err}
	}
	for _, wrapper := range list {
		for _, value := range wrapper {
			if class, ok := value.(map[string]interface{}); ok {
				parseAccountClass(class, &account)
			}
		}
	}
	return account, nil
}

// ParseWatchlistData reads the watchlists for an account. The name, id
// and owning account of each entry are independently fault tolerant: a
// missing field is logged and skipped, never fatal.
func ParseWatchlistData(ctx context.Context, body []byte) ([]types.Watchlist, error) {
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &ParseError{Op: "ParseWatchlistData", Err: err}
	}

	watchlists := make([]types.Watchlist, 0, len(list))
	for _, entry := range list {
		var watchlist types.Watchlist
		for _, field := range []struct {
			key string
			dst *string
		}{
			{"name", &watchlist.Name},
			{"watchlistId", &watchlist.ID},
			{"accountId", &watchlist.AccountID},
		} {
			value, ok := entry[field.key]
			if !ok {
				logger.Warn(ctx, "Watchlist field missing", "field", field.key)
				continue
			}
			*field.dst = stringify(value)
		}

		items, _ := entry["watchlistItems"].([]interface{})
		for _, element := range items {
			item, ok := element.(map[string]interface{})
			if !ok {
				continue
			}
			for key, value := range item {
				if key == "instrument" {
					instrument, ok := value.(map[string]interface{})
					if !ok {
						logger.Warn(ctx, "Watchlist instrument malformed", "watchlist", watchlist.Name)
						continue
					}
					watchlist.AddInstrument(
						stringify(instrument["symbol"]),
						"",
						stringify(instrument["assetType"]),
					)
					continue
				}
				watchlist.SetVariable(key, stringify(value))
			}
		}
		watchlists = append(watchlists, watchlist)
	}
	return watchlists, nil
}

// ParseOptionSymbol decodes a fixed-width option symbol of the form
// UNDERLYING_MMDDYY{C|P}STRIKE into a human readable
// "DD Mon YY / UNDERLYING STRIKE{C|P}" string.
func ParseOptionSymbol(symbol string) (string, error) {
	sep := strings.IndexByte(symbol, '_')
	if sep < 0 || len(symbol) < sep+9 {
		return "", fmt.Errorf("tda: malformed option symbol %q", symbol)
	}

	underlying := symbol[:sep]
	monthNum, err := strconv.Atoi(symbol[sep+1 : sep+3])
	if err != nil || monthNum < 1 || monthNum > 12 {
		return "", fmt.Errorf("tda: bad month in option symbol %q", symbol)
	}
	month := time.Month(monthNum).String()[:3]
	day := symbol[sep+3 : sep+5]
	year := symbol[sep+5 : sep+7]
	side := symbol[sep+7 : sep+8]
	if side != "C" && side != "P" {
		return "", fmt.Errorf("tda: bad contract side in option symbol %q", symbol)
	}
	strike := symbol[sep+8:] + side

	return day + " " + month + " " + year + " / " + underlying + " " + strike, nil
}
