package tda

import "strings"

// Endpoint path templates, relative to the API base. Path templates use
// {placeholder} tokens substituted before dispatch; query vocabulary
// comes from the enum tables in internal/types.
const (
	defaultAPIBase = "https://api.tdameritrade.com/v1"

	tokenPath          = "/oauth2/token"
	userPrincipalsPath = "/userprincipals?fields=streamerSubscriptionKeys,streamerConnectionInfo"
	quotePath          = "/marketdata/{ticker}/quotes?apikey={apikey}"
	priceHistoryPath   = "/marketdata/{ticker}/pricehistory?apikey={apikey}&periodType={periodType}&period={period}&frequencyType={frequencyType}&frequency={frequency}&needExtendedHoursData={ext}"
	optionChainPath    = "/marketdata/chains?apikey={apikey}&symbol={ticker}&contractType={contractType}&strikeCount={strikeCount}&includeQuotes={includeQuotes}&strategy={strategy}&range={range}&expMonth={expMonth}&optionType={optionType}"
	accountPath        = "/accounts/{accountNum}?fields=positions,orders"
	allAccountsPath    = "/accounts/?fields=positions,orders"
	watchlistsPath     = "/accounts/{accountNum}/watchlists"
	orderPath          = "/accounts/{accountId}/orders/{orderId}"
	ordersByQueryPath  = "/accounts/{accountId}/orders?maxResults={maxResults}&fromEnteredTime={from}&toEnteredTime={to}&status={status}"
	placeOrderPath     = "/accounts/{accountId}/orders"

	streamerEndpointPath = "/ws"
)

// substitute replaces the first occurrence of each {placeholder} in the
// template with its value.
func substitute(template string, pairs map[string]string) string {
	out := template
	for token, value := range pairs {
		out = strings.Replace(out, "{"+token+"}", value, 1)
	}
	return out
}
