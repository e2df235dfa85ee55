// Package planner turns an approved opportunity into a sized, fully
// specified trade plan: multi-timeframe validation, entry timing, a
// quality composite, the risk fraction, and the exit ladder.
package planner

import (
	"context"
	"fmt"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/indicators"
	"oanda-trading-bot/internal/logging"
)

// TradePlan is the planner's output for one candidate trade.
type TradePlan struct {
	Symbol        string       `json:"symbol"`
	Direction     string       `json:"direction"`
	Approved      bool         `json:"approved"`
	RejectReason  string       `json:"reject_reason,omitempty"`
	Quality       QualityScore `json:"quality"`
	RiskFraction  float64      `json:"risk_fraction"`
	Exits         ExitPlan     `json:"exits"`
	ValidationPct float64      `json:"validation_pct"`
	TimingPassed  bool         `json:"timing_passed"`
	TimingNote    string       `json:"timing_note,omitempty"`
}

// CandidateContext carries the scanner readings the planner grades
// without refetching.
type CandidateContext struct {
	Symbol       string
	Direction    string
	ATR          float64 // price units, from the scan timeframe
	ATRPercent   float64
	RSI          float64
	RangePos     float64
	TrendAligned bool
	Relaxed      bool // loosen the entry timing distance
}

// Planner builds trade plans from live market data.
type Planner struct {
	cfg    config.PlannerConfig
	client broker.Client
	logger *logging.Logger
}

// New creates a Planner backed by the given broker client.
func New(cfg config.PlannerConfig, client broker.Client) *Planner {
	return &Planner{
		cfg:    cfg,
		client: client,
		logger: logging.WithComponent("planner"),
	}
}

// Plan validates the candidate on H1 and M15, checks M10 entry timing,
// grades the setup, and returns the sized plan. A plan that fails
// validation or timing comes back with Approved false rather than an
// error; errors are reserved for data failures that prevent grading.
func (p *Planner) Plan(ctx context.Context, cand CandidateContext) (*TradePlan, error) {
	plan := &TradePlan{Symbol: cand.Symbol, Direction: cand.Direction}

	frames := make(map[string][]broker.Candle, 2)
	for _, gran := range []string{"H1", "M15"} {
		candles, err := p.client.GetCandles(ctx, cand.Symbol, gran, 120)
		if err != nil {
			p.logger.Warn("%s %s candles unavailable: %v", cand.Symbol, gran, err)
			continue
		}
		frames[gran] = candles
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("planner: no timeframe data for %s", cand.Symbol)
	}

	pct, pass := ValidateTimeframes(frames, cand.Direction)
	plan.ValidationPct = pct
	if !pass {
		plan.RejectReason = fmt.Sprintf("multi-timeframe score %.1f%% below %.0f%%", pct, validatePassPercent)
		p.logger.Info("%s %s rejected: %s", cand.Symbol, cand.Direction, plan.RejectReason)
		return plan, nil
	}

	m10, err := p.client.GetCandles(ctx, cand.Symbol, "M10", 120)
	if err != nil {
		p.logger.Warn("%s M10 candles unavailable, timing unchecked: %v", cand.Symbol, err)
	}
	plan.TimingPassed, plan.TimingNote = CheckTiming(m10, cand.Direction, cand.Relaxed)
	if !plan.TimingPassed {
		plan.RejectReason = "entry timing: " + plan.TimingNote
		p.logger.Info("%s %s rejected: %s", cand.Symbol, cand.Direction, plan.RejectReason)
		return plan, nil
	}

	inputs := p.qualityInputs(ctx, cand, frames["H1"])
	inputs.TimingPassed = plan.TimingPassed
	plan.Quality = ComputeQuality(inputs)
	plan.RiskFraction = RiskFraction(plan.Quality.Composite, p.cfg.RiskPerTradeMin, p.cfg.RiskPerTradeMax)

	atrPips := cand.ATR * broker.PipMultiplier(cand.Symbol)
	plan.Exits = BuildExits(atrPips, p.cfg.MinSLPips,
		p.cfg.TP1RMultiple, p.cfg.TP2RMultiple, p.cfg.TrailStartR, p.cfg.MinTrailPips)

	plan.Approved = true
	p.logger.Info("%s %s plan: quality=%.1f risk=%.3f%% sl=%.1fp validation=%.1f%%",
		cand.Symbol, cand.Direction, plan.Quality.Composite, plan.RiskFraction*100, plan.Exits.SLPips, pct)
	return plan, nil
}

// qualityInputs assembles the grading context from the scan readings plus
// H1 momentum, ADX, and the live spread. Any read that fails falls back to
// its neutral value.
func (p *Planner) qualityInputs(ctx context.Context, cand CandidateContext, h1 []broker.Candle) QualityInputs {
	in := NeutralInputs(cand.Direction)
	in.TrendAligned = cand.TrendAligned
	if cand.RSI > 0 {
		in.RSI = cand.RSI
	}
	if cand.ATRPercent > 0 {
		in.ATRPercent = cand.ATRPercent
	}
	in.RangePos = cand.RangePos

	if len(h1) >= 30 {
		highs, lows, closeSeries := series(h1)
		if adx, ok := indicators.ADX(highs, lows, closeSeries, 14); ok {
			in.ADX = adx
		}
		if mom5, ok := indicators.Momentum(closeSeries, 5); ok {
			in.Mom5 = mom5
		}
		if mom20, ok := indicators.Momentum(closeSeries, 20); ok {
			in.Mom20 = mom20
		}
	}

	if quote, err := p.client.GetQuote(ctx, cand.Symbol); err == nil && quote.Ask > quote.Bid {
		in.SpreadPips = (quote.Ask - quote.Bid) * broker.PipMultiplier(cand.Symbol)
	}
	return in
}
