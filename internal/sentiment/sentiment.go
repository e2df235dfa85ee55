// Package sentiment reads cross-market context (dollar index, volatility
// index, bond yields) and nudges opportunity scores toward or away from the
// prevailing regime. Sentiment only ever adjusts; it never creates or
// vetoes a trade on its own.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/logging"
)

// Fallback readings used when a feed is unavailable. Neutral enough to
// keep adjustments small.
const (
	fallbackDXY  = 104.0
	fallbackVIX  = 18.0
	fallbackBond = 4.5
)

// Snapshot is one full sentiment reading.
type Snapshot struct {
	DXYValue    float64   `json:"dxy_value"`
	DXYTrend    string    `json:"dxy_trend"`
	VIXValue    float64   `json:"vix_value"`
	VIXLevel    string    `json:"vix_level"`
	BondYield   float64   `json:"bond_yield"`
	BondTrend   string    `json:"bond_trend"`
	RiskRegime  string    `json:"risk_regime"`
	Composite   float64   `json:"composite"`
	Bucket      string    `json:"bucket"`
	Confidence  string    `json:"confidence"`
	FetchedAt   time.Time `json:"fetched_at"`
	UsedFallback bool     `json:"used_fallback"`
}

// Analyzer fetches market context series and produces snapshots, cached for
// the configured TTL so one scan cycle shares a single reading.
type Analyzer struct {
	cfg        config.SentimentConfig
	httpClient *http.Client
	logger     *logging.Logger

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time
}

// NewAnalyzer creates a sentiment analyzer.
func NewAnalyzer(cfg config.SentimentConfig) *Analyzer {
	return &Analyzer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logging.WithComponent("sentiment"),
	}
}

type timeSeriesResponse struct {
	Values []struct {
		Close string `json:"close"`
	} `json:"values"`
	Status string `json:"status"`
}

// fetchSeries returns recent daily closes for a symbol, newest first.
func (a *Analyzer) fetchSeries(ctx context.Context, symbol string, size int) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/time_series?symbol=%s&interval=1day&outputsize=%d&apikey=%s",
		a.cfg.BaseURL, url.QueryEscape(symbol), size, a.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sentiment: %s returned HTTP %d", symbol, resp.StatusCode)
	}

	var data timeSeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.Status != "" && data.Status != "ok" {
		return nil, fmt.Errorf("sentiment: %s feed status %s", symbol, data.Status)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("sentiment: empty series for %s", symbol)
	}

	closes := make([]float64, 0, len(data.Values))
	for _, v := range data.Values {
		f, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			continue
		}
		closes = append(closes, f)
	}
	return closes, nil
}

// percentChange computes the percent change from bars back to the latest
// close; series is newest first.
func percentChange(series []float64, bars int) float64 {
	if len(series) <= bars || series[bars] == 0 {
		return 0
	}
	return (series[0] - series[bars]) / series[bars] * 100
}

// Current returns the cached snapshot when fresh, otherwise fetches a new
// one. Feed failures fall back to neutral readings rather than failing the
// scan.
func (a *Analyzer) Current(ctx context.Context) Snapshot {
	a.mu.Lock()
	ttl := time.Duration(a.cfg.CacheTTL) * time.Second
	if a.cached != nil && time.Since(a.cachedAt) < ttl {
		snap := *a.cached
		a.mu.Unlock()
		return snap
	}
	a.mu.Unlock()

	snap := a.fetch(ctx)

	a.mu.Lock()
	a.cached = &snap
	a.cachedAt = time.Now()
	a.mu.Unlock()
	return snap
}

func (a *Analyzer) fetch(ctx context.Context) Snapshot {
	snap := Snapshot{
		DXYValue: fallbackDXY, DXYTrend: DXYNeutral,
		VIXValue: fallbackVIX, VIXLevel: VIXNormal,
		BondYield: fallbackBond, BondTrend: "neutral",
		FetchedAt: time.Now().UTC(),
	}

	dxyChange20 := 0.0
	if !a.cfg.Enabled {
		snap.UsedFallback = true
	} else {
		if dxy, err := a.fetchSeries(ctx, "DXY", 25); err == nil {
			snap.DXYValue = dxy[0]
			dxyChange20 = percentChange(dxy, 20)
			snap.DXYTrend = ClassifyDXYTrend(percentChange(dxy, 5), dxyChange20)
		} else {
			a.logger.Warn("DXY feed unavailable, using neutral fallback: %v", err)
			snap.UsedFallback = true
		}

		if vix, err := a.fetchSeries(ctx, "VIX", 5); err == nil {
			snap.VIXValue = vix[0]
			snap.VIXLevel = ClassifyVIX(vix[0])
		} else {
			a.logger.Warn("VIX feed unavailable, using neutral fallback: %v", err)
			snap.UsedFallback = true
		}

		if bond, err := a.fetchSeries(ctx, "US10Y", 10); err == nil {
			snap.BondYield = bond[0]
			change := percentChange(bond, 5)
			switch {
			case change > 1.5:
				snap.BondTrend = "rising"
			case change < -1.5:
				snap.BondTrend = "falling"
			}
		} else {
			snap.UsedFallback = true
		}
	}

	snap.RiskRegime = RiskRegime(snap.VIXValue, snap.DXYTrend)
	snap.Composite = Composite(snap.DXYTrend, dxyChange20, snap.VIXValue, snap.VIXLevel, snap.RiskRegime, snap.BondTrend)
	snap.Bucket = CompositeBucket(snap.Composite)
	snap.Confidence = Confidence(snap.DXYTrend, snap.VIXLevel, snap.RiskRegime, snap.BondTrend)

	a.logger.Info("Sentiment: dxy=%s vix=%.1f (%s) regime=%s composite=%.0f confidence=%s",
		snap.DXYTrend, snap.VIXValue, snap.VIXLevel, snap.RiskRegime, snap.Composite, snap.Confidence)
	return snap
}
