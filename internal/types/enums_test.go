package types

import "testing"

func TestPeriodTypeAPIValue(t *testing.T) {
	cases := map[PeriodType]string{
		PeriodDay:   "day",
		PeriodMonth: "month",
		PeriodYear:  "year",
		PeriodYTD:   "ytd",
	}
	for period, want := range cases {
		if got := period.APIValue(); got != want {
			t.Errorf("PeriodType %d: expected %s, got %s", period, want, got)
		}
	}
	if got := PeriodType(99).APIValue(); got != "day" {
		t.Errorf("Expected day fallback for unknown period type, got %s", got)
	}
}

func TestFrequencyTypeAPIValue(t *testing.T) {
	if got := FrequencyMinute.APIValue(); got != "minute" {
		t.Errorf("Expected minute, got %s", got)
	}
	if got := FrequencyType(99).APIValue(); got != "daily" {
		t.Errorf("Expected daily fallback for unknown frequency type, got %s", got)
	}
}

func TestServiceTypeAPIName(t *testing.T) {
	cases := map[ServiceType]string{
		ServiceAdmin:        "ADMIN",
		ServiceQuote:        "QUOTE",
		ServiceNewsHeadline: "NEWS_HEADLINE",
		ServiceChartEquity:  "CHART_EQUITY",
	}
	for service, want := range cases {
		if got := service.APIName(); got != want {
			t.Errorf("ServiceType %d: expected %s, got %s", service, want, got)
		}
	}
	if got := ServiceType(99).APIName(); got != "NONE" {
		t.Errorf("Expected NONE fallback for unknown service, got %s", got)
	}
}

func TestAmountValues(t *testing.T) {
	if got := PeriodAmountValue(10); got != "10" {
		t.Errorf("Expected 10, got %s", got)
	}
	if got := PeriodAmountValue(7); got != "1" {
		t.Errorf("Expected fallback 1 for unsupported period amount, got %s", got)
	}
	if got := FrequencyAmountValue(30); got != "30" {
		t.Errorf("Expected 30, got %s", got)
	}
	if got := FrequencyAmountValue(2); got != "1" {
		t.Errorf("Expected fallback 1 for unsupported frequency amount, got %s", got)
	}
}

func TestOrderStatusAPIValue(t *testing.T) {
	if got := OrderStatusFilled.APIValue(); got != "FILLED" {
		t.Errorf("Expected FILLED, got %s", got)
	}
	if got := OrderStatus(99).APIValue(); got != "ALL" {
		t.Errorf("Expected ALL fallback for unknown status, got %s", got)
	}
}

func TestPriceHistoryAddCandle(t *testing.T) {
	history := PriceHistory{Ticker: "SPY"}
	candle := Candle{Open: 1, Close: 2, RawDatetime: 1628607431000}

	history.AddCandle(candle)
	history.AddCandleByFrequency(candle, 5)

	if len(history.Candles) != 1 {
		t.Fatalf("Expected 1 candle, got %d", len(history.Candles))
	}
	if len(history.ByFrequency[5]) != 1 {
		t.Fatalf("Expected 1 candle at frequency 5, got %d", len(history.ByFrequency[5]))
	}
}
