package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"oanda-trading-bot/internal/logging"
)

// OandaClient talks to the OANDA v20 REST API.
type OandaClient struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOandaClient creates a client for the given OANDA environment.
func NewOandaClient(baseURL, token, accountID string) *OandaClient {
	return &OandaClient{
		baseURL:   baseURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logging.WithComponent("oanda"),
	}
}

type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("oanda: HTTP %d: %s", e.StatusCode, e.Message)
}

func (c *OandaClient) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("oanda: encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("oanda: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oanda: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("oanda: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			ErrorMessage string `json:"errorMessage"`
		}
		_ = json.Unmarshal(data, &errBody)
		return &apiError{StatusCode: resp.StatusCode, Message: errBody.ErrorMessage}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("oanda: decoding response: %w", err)
		}
	}
	return nil
}

// doGet performs a read request with exponential backoff on transient
// failures. Write paths (orders, closes) are never retried here because a
// retry could double-fill.
func (c *OandaClient) doGet(ctx context.Context, path string, out interface{}) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		err := c.doRequest(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		if apiErr, ok := err.(*apiError); ok {
			if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

type candlesResponse struct {
	Candles []struct {
		Time     string `json:"time"`
		Complete bool   `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

// GetCandles fetches mid-price candles for the instrument. An empty result
// is returned as ErrInsufficientData so callers can abstain.
func (c *OandaClient) GetCandles(ctx context.Context, instrument, granularity string, count int) ([]Candle, error) {
	path := fmt.Sprintf("/v3/instruments/%s/candles?price=M&granularity=%s&count=%d",
		url.PathEscape(BrokerInstrument(instrument)), granularity, count)

	var resp candlesResponse
	if err := c.doGet(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candles) == 0 {
		return nil, ErrInsufficientData
	}

	candles := make([]Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		t, err := time.Parse(time.RFC3339Nano, raw.Time)
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(raw.Mid.O, 64)
		h, _ := strconv.ParseFloat(raw.Mid.H, 64)
		l, _ := strconv.ParseFloat(raw.Mid.L, 64)
		cl, _ := strconv.ParseFloat(raw.Mid.C, 64)
		candles = append(candles, Candle{
			Time: t, Open: o, High: h, Low: l, Close: cl, Complete: raw.Complete,
		})
	}
	return candles, nil
}

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Time       string `json:"time"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

// GetQuote fetches the current bid/ask for the instrument.
func (c *OandaClient) GetQuote(ctx context.Context, instrument string) (*Quote, error) {
	inst := BrokerInstrument(instrument)
	path := fmt.Sprintf("/v3/accounts/%s/pricing?instruments=%s", c.accountID, url.QueryEscape(inst))

	var resp pricingResponse
	if err := c.doGet(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Prices) == 0 || len(resp.Prices[0].Bids) == 0 || len(resp.Prices[0].Asks) == 0 {
		return nil, ErrInsufficientData
	}

	p := resp.Prices[0]
	bid, _ := strconv.ParseFloat(p.Bids[0].Price, 64)
	ask, _ := strconv.ParseFloat(p.Asks[0].Price, 64)
	t, _ := time.Parse(time.RFC3339Nano, p.Time)
	return &Quote{Instrument: inst, Bid: bid, Ask: ask, Time: t}, nil
}

type orderFillResponse struct {
	OrderFillTransaction struct {
		Price       string `json:"price"`
		TradeOpened struct {
			TradeID string `json:"tradeID"`
		} `json:"tradeOpened"`
		TradesOpened []struct {
			TradeID string `json:"tradeID"`
		} `json:"tradesOpened"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
}

// SubmitMarketOrder places a market order with SL and TP attached on fill.
// The trade ID is extracted from tradeOpened with a fallback to the plural
// tradesOpened list for partial fills; if neither path yields an ID the
// order filled but cannot be tracked, which is fatal.
func (c *OandaClient) SubmitMarketOrder(ctx context.Context, req OrderRequest) (*FillConfirmation, error) {
	inst := BrokerInstrument(req.Instrument)
	body := map[string]interface{}{
		"order": map[string]interface{}{
			"type":         "MARKET",
			"instrument":   inst,
			"units":        strconv.Itoa(req.Units),
			"timeInForce":  "FOK",
			"positionFill": "DEFAULT",
			"stopLossOnFill": map[string]string{
				"price": FormatPrice(inst, req.StopLoss),
			},
			"takeProfitOnFill": map[string]string{
				"price": FormatPrice(inst, req.TakeProfit),
			},
		},
	}

	path := fmt.Sprintf("/v3/accounts/%s/orders", c.accountID)
	var resp orderFillResponse
	if err := c.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.OrderCancelTransaction.Reason != "" {
		return nil, fmt.Errorf("oanda: order cancelled: %s", resp.OrderCancelTransaction.Reason)
	}

	fill := resp.OrderFillTransaction
	tradeID := fill.TradeOpened.TradeID
	if tradeID == "" && len(fill.TradesOpened) > 0 {
		tradeID = fill.TradesOpened[0].TradeID
	}
	if tradeID == "" {
		return nil, ErrNoTradeID
	}

	price, _ := strconv.ParseFloat(fill.Price, 64)
	c.logger.Info("Order filled: %s units=%d trade_id=%s price=%s", inst, req.Units, tradeID, fill.Price)
	return &FillConfirmation{TradeID: tradeID, FillPrice: price}, nil
}

type tradeDetailResponse struct {
	Trade struct {
		ID                string `json:"id"`
		Instrument        string `json:"instrument"`
		Price             string `json:"price"`
		InitialUnits      string `json:"initialUnits"`
		CurrentUnits      string `json:"currentUnits"`
		RealizedPL        string `json:"realizedPL"`
		UnrealizedPL      string `json:"unrealizedPL"`
		AverageClosePrice string `json:"averageClosePrice"`
		State             string `json:"state"`
	} `json:"trade"`
}

// LookupTrade fetches the live state of a trade and tags the outcome so the
// monitor can branch on it: 404 means the trade is gone (an expected close
// signal), network errors and 5xx/429 are transient, other 4xx are fatal.
func (c *OandaClient) LookupTrade(ctx context.Context, tradeID string) TradeLookup {
	path := fmt.Sprintf("/v3/accounts/%s/trades/%s", c.accountID, url.PathEscape(tradeID))

	var resp tradeDetailResponse
	err := c.doRequest(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		if apiErr, ok := err.(*apiError); ok {
			switch {
			case apiErr.StatusCode == http.StatusNotFound:
				return TradeLookup{Status: StatusNotFound}
			case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
				return TradeLookup{Status: StatusTransient, Err: err}
			default:
				return TradeLookup{Status: StatusFatal, Err: err}
			}
		}
		// Network-level failures are retryable.
		return TradeLookup{Status: StatusTransient, Err: err}
	}

	t := resp.Trade
	initialUnits, _ := strconv.ParseFloat(t.InitialUnits, 64)
	currentUnits, _ := strconv.ParseFloat(t.CurrentUnits, 64)
	entryPrice, _ := strconv.ParseFloat(t.Price, 64)
	realizedPL, _ := strconv.ParseFloat(t.RealizedPL, 64)
	unrealizedPL, _ := strconv.ParseFloat(t.UnrealizedPL, 64)
	avgClose, _ := strconv.ParseFloat(t.AverageClosePrice, 64)

	return TradeLookup{
		Status: StatusFound,
		Trade: &TradeState{
			TradeID:           t.ID,
			Instrument:        t.Instrument,
			InitialUnits:      int(initialUnits),
			CurrentUnits:      int(currentUnits),
			EntryPrice:        entryPrice,
			RealizedPL:        realizedPL,
			UnrealizedPL:      unrealizedPL,
			AverageClosePrice: avgClose,
			State:             t.State,
		},
	}
}

// UpdateStopLoss replaces the stop loss order attached to a trade.
func (c *OandaClient) UpdateStopLoss(ctx context.Context, tradeID string, price float64) error {
	lookup := c.LookupTrade(ctx, tradeID)
	instrument := ""
	if lookup.Status == StatusFound {
		instrument = lookup.Trade.Instrument
	}

	body := map[string]interface{}{
		"stopLoss": map[string]string{
			"price":       FormatPrice(instrument, price),
			"timeInForce": "GTC",
		},
	}
	path := fmt.Sprintf("/v3/accounts/%s/trades/%s/orders", c.accountID, url.PathEscape(tradeID))
	return c.doRequest(ctx, http.MethodPut, path, body, nil)
}

// ClosePartial closes the given number of units of an open trade.
func (c *OandaClient) ClosePartial(ctx context.Context, tradeID string, units int) error {
	body := map[string]string{
		"units": strconv.Itoa(units),
	}
	path := fmt.Sprintf("/v3/accounts/%s/trades/%s/close", c.accountID, url.PathEscape(tradeID))
	return c.doRequest(ctx, http.MethodPut, path, body, nil)
}

type openTradesResponse struct {
	Trades []struct {
		ID string `json:"id"`
	} `json:"trades"`
}

// ListOpenTrades returns the IDs of all open trades on the account.
func (c *OandaClient) ListOpenTrades(ctx context.Context) ([]string, error) {
	path := fmt.Sprintf("/v3/accounts/%s/openTrades", c.accountID)
	var resp openTradesResponse
	if err := c.doGet(ctx, path, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

type accountSummaryResponse struct {
	Account struct {
		Balance string `json:"balance"`
	} `json:"account"`
}

// AccountBalance returns the current account balance.
func (c *OandaClient) AccountBalance(ctx context.Context) (float64, error) {
	path := fmt.Sprintf("/v3/accounts/%s/summary", c.accountID)
	var resp accountSummaryResponse
	if err := c.doGet(ctx, path, &resp); err != nil {
		return 0, err
	}
	balance, err := strconv.ParseFloat(resp.Account.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("oanda: parsing balance: %w", err)
	}
	return balance, nil
}
