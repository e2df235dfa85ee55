// analyze-trades prints a per-instrument performance breakdown from the
// trade history store. Read-only; safe to run while the bot trades.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/database"
)

type instrumentStats struct {
	Instrument  string
	Trades      int
	Wins        int
	Losses      int
	TotalPnL    float64
	TotalWins   float64
	TotalLosses float64
	Best        float64
	Worst       float64
}

func (s instrumentStats) winRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}

func main() {
	days := flag.Int("days", 30, "lookback window in days")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.DatabaseConfig.Enabled {
		fmt.Fprintln(os.Stderr, "database is disabled in configuration; nothing to analyze")
		os.Exit(1)
	}

	db, err := database.NewDB(cfg.DatabaseConfig.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := database.NewRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	trades, err := repo.ClosedTradesSince(ctx, cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query closed trades: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("TRADE HISTORY ANALYSIS: last %d days (%d closed trades)\n", *days, len(trades))
	fmt.Println(strings.Repeat("=", 78))

	if len(trades) == 0 {
		fmt.Println("No closed trades in the window.")
		return
	}

	byInstrument := make(map[string]*instrumentStats)
	byReason := make(map[string]int)
	var totalPnL float64
	for _, t := range trades {
		if t.PnLNet == nil {
			continue
		}
		pnl := *t.PnLNet
		totalPnL += pnl

		s, ok := byInstrument[t.Instrument]
		if !ok {
			s = &instrumentStats{Instrument: t.Instrument}
			byInstrument[t.Instrument] = s
		}
		s.Trades++
		if pnl >= 0 {
			s.Wins++
			s.TotalWins += pnl
		} else {
			s.Losses++
			s.TotalLosses += pnl
		}
		s.TotalPnL += pnl
		if pnl > s.Best || s.Trades == 1 {
			s.Best = pnl
		}
		if pnl < s.Worst || s.Trades == 1 {
			s.Worst = pnl
		}

		if t.ReasonClose != "" {
			byReason[t.ReasonClose]++
		}
	}

	stats := make([]*instrumentStats, 0, len(byInstrument))
	for _, s := range byInstrument {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].TotalPnL > stats[j].TotalPnL })

	fmt.Printf("\n%-12s %7s %6s %8s %12s %10s %10s\n",
		"INSTRUMENT", "TRADES", "WINS", "WIN%", "NET PNL", "BEST", "WORST")
	fmt.Println(strings.Repeat("-", 78))
	for _, s := range stats {
		fmt.Printf("%-12s %7d %6d %7.1f%% %12.2f %10.2f %10.2f\n",
			s.Instrument, s.Trades, s.Wins, s.winRate(), s.TotalPnL, s.Best, s.Worst)
	}
	fmt.Println(strings.Repeat("-", 78))
	fmt.Printf("%-12s %7d %27.2f\n", "TOTAL", len(trades), totalPnL)

	if len(byReason) > 0 {
		fmt.Println("\nClose reasons:")
		reasons := make([]string, 0, len(byReason))
		for r := range byReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("  %-20s %d\n", r, byReason[r])
		}
	}

	// A quick equity-curve sanity check: the longest losing run in the
	// window, in chronological order.
	sort.Slice(trades, func(i, j int) bool {
		ti, tj := trades[i].ClosedAt, trades[j].ClosedAt
		if ti == nil || tj == nil {
			return ti != nil
		}
		return ti.Before(*tj)
	})
	streak, worstStreak := 0, 0
	for _, t := range trades {
		if t.PnLNet != nil && *t.PnLNet < 0 {
			streak++
			if streak > worstStreak {
				worstStreak = streak
			}
		} else {
			streak = 0
		}
	}
	fmt.Printf("\nLongest losing streak: %d trades\n", worstStreak)
}
