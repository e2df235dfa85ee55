// Package gate is the admission gate between the scanner and the planner.
// Every candidate passes freshness, cooldown, hard market filters, and
// final guardrails before any order is placed. Blocks carry a structured
// reason so downstream logic and the audit trail never parse strings.
package gate

import (
	"fmt"
	"math"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/indicators"
	"oanda-trading-bot/internal/logging"
)

// Candidate is one proposed trade under evaluation.
type Candidate struct {
	Symbol     string
	Direction  string // "buy" or "sell"
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Rationale  string
	Score      float64
}

// Market is the data the gate evaluates a candidate against.
type Market struct {
	H4    []broker.Candle
	Daily []broker.Candle
	Price float64
}

// Gate applies the full admission pipeline.
type Gate struct {
	cfg      config.GateConfig
	registry *Registry
	logger   *logging.Logger
}

// New creates a gate around an idea registry.
func New(cfg config.GateConfig, registry *Registry) *Gate {
	return &Gate{
		cfg:      cfg,
		registry: registry,
		logger:   logging.WithComponent("gate"),
	}
}

// Registry exposes the underlying idea registry so the executor can record
// fills.
func (g *Gate) Registry() *Registry {
	return g.registry
}

func ohlc(candles []broker.Candle) (highs, lows, closeSeries []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closeSeries = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}
	return highs, lows, closeSeries
}

// Evaluate runs the candidate through every check in order. The first
// failing check decides the block reason; passing candidates carry soft
// structure tags.
func (g *Gate) Evaluate(cand Candidate, mkt Market, now time.Time) Decision {
	log := logging.GateContext(cand.Symbol, cand.Direction)

	if len(mkt.H4) < 60 {
		return blocked(ReasonNoData, fmt.Sprintf("only %d H4 candles", len(mkt.H4)))
	}

	highs, lows, series := ohlc(mkt.H4)
	atr, atrOK := indicators.ATRWilder(highs, lows, series, 21)
	atrPct, _ := indicators.ATRPercent(highs, lows, series, 21)
	rsi, rsiOK := indicators.RSI(series, 14)
	adx, adxOK := indicators.ADX(highs, lows, series, 14)
	rangePos, _ := indicators.RangePosition(highs, lows, series, 20)

	if dec := g.checkFreshness(cand, now); !dec.Allowed {
		log.Info("Blocked: %s (%s)", dec.Reason, dec.Detail)
		return dec
	}
	if dec := g.checkCooldown(cand, mkt.Price, atr, atrOK, now); !dec.Allowed {
		log.Info("Blocked: %s (%s)", dec.Reason, dec.Detail)
		return dec
	}

	trendAligned, trendRelaxed, dec := g.checkTrend(series, cand.Direction)
	if !dec.Allowed {
		log.Info("Blocked: %s (%s)", dec.Reason, dec.Detail)
		return dec
	}

	minADX := g.cfg.MinADX
	if trendRelaxed {
		minADX -= g.cfg.ADXRelaxDelta
	}
	if adxOK && adx < minADX {
		d := blocked(ReasonWeakADX, fmt.Sprintf("ADX %.1f below %.1f", adx, minADX))
		log.Info("Blocked: %s (%s)", d.Reason, d.Detail)
		return d
	}

	if atrPct < g.cfg.MinATRPercent || atrPct > g.cfg.MaxATRPercent {
		d := blocked(ReasonATROutOfBand, fmt.Sprintf("ATR %.2f%% outside [%.2f, %.2f]", atrPct, g.cfg.MinATRPercent, g.cfg.MaxATRPercent))
		log.Info("Blocked: %s (%s)", d.Reason, d.Detail)
		return d
	}

	if dec := g.checkGuardrails(cand, rsi, rsiOK, atrPct, trendAligned, rangePos); !dec.Allowed {
		log.Info("Blocked: %s (%s)", dec.Reason, dec.Detail)
		return dec
	}

	tags := StructureTags(mkt.Daily, mkt.H4, cand.Direction, atr)
	if trendRelaxed {
		tags = append(tags, TagTrendRelaxed)
	}
	log.Debug("Admitted with tags %v", tags)
	return Decision{Allowed: true, Tags: tags}
}

// checkFreshness blocks candidates whose rationale is near-identical to a
// recently executed idea on the same pair and direction.
func (g *Gate) checkFreshness(cand Candidate, now time.Time) Decision {
	lookback := time.Duration(g.cfg.FreshnessLookbackDays) * 24 * time.Hour
	sim := g.registry.MostSimilar(cand.Symbol, cand.Direction, cand.Rationale, lookback, now)
	if sim >= g.cfg.FreshnessSimilarity {
		return blocked(ReasonStaleIdea, fmt.Sprintf("similarity %.2f to a recent idea", sim))
	}
	return Decision{Allowed: true}
}

// checkCooldown requires both enough elapsed time since the last trade on
// the pair/direction and enough price movement away from its entry. Missing
// reference data counts as not satisfied.
func (g *Gate) checkCooldown(cand Candidate, price, atr float64, atrOK bool, now time.Time) Decision {
	last, ok := g.registry.Last(cand.Symbol, cand.Direction)
	if !ok {
		return Decision{Allowed: true}
	}

	cooldown := time.Duration(g.cfg.CooldownHours * float64(time.Hour))
	elapsed := now.Sub(last.Timestamp)
	if elapsed < cooldown {
		return blocked(ReasonCooldownTime, fmt.Sprintf("%.1fh since last %s %s trade, need %.1fh",
			elapsed.Hours(), cand.Symbol, cand.Direction, cooldown.Hours()))
	}

	if last.EntryPrice <= 0 || price <= 0 || !atrOK {
		return blocked(ReasonCooldownPrice, "missing reference price or ATR")
	}
	required := math.Max(atr*g.cfg.CooldownATRMult, last.EntryPrice*g.cfg.CooldownPctMove/100)
	moved := math.Abs(price - last.EntryPrice)
	if moved < required {
		return blocked(ReasonCooldownPrice, fmt.Sprintf("price moved %.5f, need %.5f", moved, required))
	}
	return Decision{Allowed: true}
}

// checkTrend compares EMA50 of the recent window against EMA200 of the full
// series. A misaligned trend blocks unless relaxation is enabled, in which
// case the candidate passes with a raised ADX bar.
func (g *Gate) checkTrend(series []float64, direction string) (aligned, relaxed bool, dec Decision) {
	recent := series
	if len(recent) > 50 {
		recent = recent[len(recent)-50:]
	}
	ema50, ok1 := indicators.EMA(recent, 50)
	ema200, ok2 := indicators.EMA(series, 200)
	if !ok1 || !ok2 {
		// Not enough history to judge the trend; treat as relaxed.
		return false, true, Decision{Allowed: true}
	}

	if direction == "buy" {
		aligned = ema50 > ema200
	} else {
		aligned = ema50 < ema200
	}
	if aligned {
		return true, false, Decision{Allowed: true}
	}
	if g.cfg.AllowTrendRelax {
		g.logger.Warn("Trend misaligned for %s, relaxed pass", direction)
		return false, true, Decision{Allowed: true}
	}
	return false, false, blocked(ReasonTrendFilter, fmt.Sprintf("EMA50 %.5f vs EMA200 %.5f against %s", ema50, ema200, direction))
}

// checkGuardrails is the last defense before execution: sane levels, a
// minimum risk:reward, no dead-zone RSI, at least one strong confirmation,
// and a volatility floor.
func (g *Gate) checkGuardrails(cand Candidate, rsi float64, rsiOK bool, atrPct float64, trendAligned bool, rangePos float64) Decision {
	risk := math.Abs(cand.EntryPrice - cand.StopLoss)
	reward := math.Abs(cand.TakeProfit - cand.EntryPrice)
	if risk <= 0 || cand.StopLoss <= 0 || cand.TakeProfit <= 0 {
		return blocked(ReasonInvalidLevels, fmt.Sprintf("entry %.5f sl %.5f tp %.5f", cand.EntryPrice, cand.StopLoss, cand.TakeProfit))
	}
	if rr := reward / risk; rr < g.cfg.MinRiskReward {
		return blocked(ReasonRiskReward, fmt.Sprintf("RR %.2f below %.2f", rr, g.cfg.MinRiskReward))
	}

	if rsiOK && rsi > 45 && rsi < 55 {
		return blocked(ReasonNeutralRSI, fmt.Sprintf("RSI %.1f in the 45-55 dead zone", rsi))
	}

	confirmations := 0
	if rsiOK {
		if cand.Direction == "buy" && rsi < 35 {
			confirmations++
		}
		if cand.Direction == "sell" && rsi > 65 {
			confirmations++
		}
	}
	if trendAligned {
		confirmations++
	}
	if cand.Direction == "buy" && rangePos < 0.30 {
		confirmations++
	}
	if cand.Direction == "sell" && rangePos > 0.70 {
		confirmations++
	}
	if confirmations == 0 {
		return blocked(ReasonNoConfirm, "no strong confirmation signal")
	}

	if atrPct < g.cfg.LowVolatilityFloor {
		return blocked(ReasonLowVolatility, fmt.Sprintf("ATR %.2f%% below %.2f%% floor", atrPct, g.cfg.LowVolatilityFloor))
	}
	return Decision{Allowed: true}
}
