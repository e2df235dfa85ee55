package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitMarketOrderTradeID(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantID   string
		wantErr  error
	}{
		{
			name:     "primary trade ID path",
			response: `{"orderFillTransaction":{"price":"1.09551","tradeOpened":{"tradeID":"42"}}}`,
			wantID:   "42",
		},
		{
			name:     "fallback to tradesOpened list",
			response: `{"orderFillTransaction":{"price":"1.09551","tradesOpened":[{"tradeID":"43"}]}}`,
			wantID:   "43",
		},
		{
			name:     "no trade ID anywhere",
			response: `{"orderFillTransaction":{"price":"1.09551"}}`,
			wantErr:  ErrNoTradeID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewOandaClient(server.URL, "token", "acct")
			fill, err := client.SubmitMarketOrder(context.Background(), OrderRequest{
				Instrument: "EUR_USD",
				Units:      1000,
				StopLoss:   1.0900,
				TakeProfit: 1.1100,
			})
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("SubmitMarketOrder error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SubmitMarketOrder error = %v", err)
			}
			if fill.TradeID != tt.wantID {
				t.Errorf("TradeID = %q, want %q", fill.TradeID, tt.wantID)
			}
		})
	}
}

func TestLookupTradeStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		want       LookupStatus
	}{
		{
			name:       "found",
			statusCode: http.StatusOK,
			body:       `{"trade":{"id":"42","instrument":"EUR_USD","price":"1.0955","initialUnits":"1000","currentUnits":"1000","state":"OPEN"}}`,
			want:       StatusFound,
		},
		{name: "not found", statusCode: http.StatusNotFound, body: `{}`, want: StatusNotFound},
		{name: "server error is transient", statusCode: http.StatusBadGateway, body: `{}`, want: StatusTransient},
		{name: "rate limit is transient", statusCode: http.StatusTooManyRequests, body: `{}`, want: StatusTransient},
		{name: "bad request is fatal", statusCode: http.StatusBadRequest, body: `{}`, want: StatusFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOandaClient(server.URL, "token", "acct")
			lookup := client.LookupTrade(context.Background(), "42")
			if lookup.Status != tt.want {
				t.Errorf("LookupTrade status = %s, want %s", lookup.Status, tt.want)
			}
			if tt.want == StatusFound && lookup.Trade == nil {
				t.Error("expected populated trade state")
			}
		})
	}
}

func TestLookupTradeNetworkErrorIsTransient(t *testing.T) {
	client := NewOandaClient("http://127.0.0.1:1", "token", "acct")
	lookup := client.LookupTrade(context.Background(), "42")
	if lookup.Status != StatusTransient {
		t.Errorf("LookupTrade status = %s, want %s", lookup.Status, StatusTransient)
	}
}
