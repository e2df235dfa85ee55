package broker

import "testing"

func TestBrokerInstrument(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		want   string
	}{
		{name: "bare pair", symbol: "EURUSD", want: "EUR_USD"},
		{name: "already formatted", symbol: "EUR_USD", want: "EUR_USD"},
		{name: "lowercase", symbol: "gbpjpy", want: "GBP_JPY"},
		{name: "metal", symbol: "XAUUSD", want: "XAU_USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BrokerInstrument(tt.symbol); got != tt.want {
				t.Errorf("BrokerInstrument(%q) = %q, want %q", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestPipFactor(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		want   float64
	}{
		{name: "major", symbol: "EUR_USD", want: 0.0001},
		{name: "yen cross", symbol: "USD_JPY", want: 0.01},
		{name: "gold", symbol: "XAU_USD", want: 0.1},
		{name: "silver", symbol: "XAG_USD", want: 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PipFactor(tt.symbol); got != tt.want {
				t.Errorf("PipFactor(%q) = %v, want %v", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		price  float64
		want   string
	}{
		{name: "major 5dp", symbol: "EUR_USD", price: 1.095512345, want: "1.09551"},
		{name: "yen 3dp", symbol: "USD_JPY", price: 147.12345, want: "147.123"},
		{name: "gold 2dp", symbol: "XAU_USD", price: 2412.3456, want: "2412.35"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatPrice(tt.symbol, tt.price); got != tt.want {
				t.Errorf("FormatPrice(%q, %v) = %q, want %q", tt.symbol, tt.price, got, tt.want)
			}
		})
	}
}

func TestCurrencies(t *testing.T) {
	if got := BaseCurrency("EUR_USD"); got != "EUR" {
		t.Errorf("BaseCurrency = %q, want EUR", got)
	}
	if got := QuoteCurrency("EUR_USD"); got != "USD" {
		t.Errorf("QuoteCurrency = %q, want USD", got)
	}
}
