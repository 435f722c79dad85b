package types

// The integer selectors below map onto the exact wire vocabulary the
// service accepts. The tables are part of the external contract.

type PeriodType int

const (
	PeriodDay PeriodType = iota
	PeriodMonth
	PeriodYear
	PeriodYTD
)

type FrequencyType int

const (
	FrequencyMinute FrequencyType = iota
	FrequencyDaily
	FrequencyWeekly
	FrequencyMonthly
)

// ServiceType selects a streaming subscription service.
type ServiceType int

const (
	ServiceNone ServiceType = iota
	ServiceAdmin
	ServiceActives
	ServiceChartEquity
	ServiceChartOptions
	ServiceQuote
	ServiceOption
	ServiceNewsHeadline
	ServiceTimesaleEquity
	ServiceTimesaleOptions
	ServiceAcctActivity
)

var periodTypeValues = map[PeriodType]string{
	PeriodDay:   "day",
	PeriodMonth: "month",
	PeriodYear:  "year",
	PeriodYTD:   "ytd",
}

var frequencyTypeValues = map[FrequencyType]string{
	FrequencyMinute:  "minute",
	FrequencyDaily:   "daily",
	FrequencyWeekly:  "weekly",
	FrequencyMonthly: "monthly",
}

var serviceNames = map[ServiceType]string{
	ServiceNone:            "NONE",
	ServiceAdmin:           "ADMIN",
	ServiceActives:         "ACTIVES_NASDAQ",
	ServiceChartEquity:     "CHART_EQUITY",
	ServiceChartOptions:    "CHART_OPTIONS",
	ServiceQuote:           "QUOTE",
	ServiceOption:          "OPTION",
	ServiceNewsHeadline:    "NEWS_HEADLINE",
	ServiceTimesaleEquity:  "TIMESALE_EQUITY",
	ServiceTimesaleOptions: "TIMESALE_OPTIONS",
	ServiceAcctActivity:    "ACCT_ACTIVITY",
}

func (p PeriodType) APIValue() string {
	if v, ok := periodTypeValues[p]; ok {
		return v
	}
	return periodTypeValues[PeriodDay]
}

func (f FrequencyType) APIValue() string {
	if v, ok := frequencyTypeValues[f]; ok {
		return v
	}
	return frequencyTypeValues[FrequencyDaily]
}

func (s ServiceType) APIName() string {
	if v, ok := serviceNames[s]; ok {
		return v
	}
	return serviceNames[ServiceNone]
}

// periodAmounts and frequencyAmounts are the integer selectors the
// service accepts for each; anything else falls back to 1.
var periodAmounts = map[int]string{
	1: "1", 2: "2", 3: "3", 4: "4", 5: "5",
	6: "6", 10: "10", 15: "15", 20: "20",
}

var frequencyAmounts = map[int]string{
	1: "1", 5: "5", 10: "10", 15: "15", 30: "30",
}

func PeriodAmountValue(amount int) string {
	if v, ok := periodAmounts[amount]; ok {
		return v
	}
	return "1"
}

func FrequencyAmountValue(amount int) string {
	if v, ok := frequencyAmounts[amount]; ok {
		return v
	}
	return "1"
}

// OrderStatus filters order queries.
type OrderStatus int

const (
	OrderStatusAll OrderStatus = iota
	OrderStatusWorking
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
	OrderStatusExpired
)

var orderStatusValues = map[OrderStatus]string{
	OrderStatusAll:      "ALL",
	OrderStatusWorking:  "WORKING",
	OrderStatusFilled:   "FILLED",
	OrderStatusCanceled: "CANCELED",
	OrderStatusRejected: "REJECTED",
	OrderStatusExpired:  "EXPIRED",
}

func (s OrderStatus) APIValue() string {
	if v, ok := orderStatusValues[s]; ok {
		return v
	}
	return orderStatusValues[OrderStatusAll]
}
