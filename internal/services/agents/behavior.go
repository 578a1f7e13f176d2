// Package agents holds the analysis steps that make up the commentary pipeline.
// Each agent exposes Run, which reads and enriches an AnalysisContext.
package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"RiskPulse/internal/domain/models"
	applogger "RiskPulse/pkg/logger"
	xutil "RiskPulse/pkg/util"
)

// Step names double as the prefix of the per-step error keys.
const (
	BehaviorMonitorName = "BehaviorMonitorAgent"
	MarketWatcherName   = "MarketWatcherAgent"
	NarratorName        = "NarratorAgent"
	PersonaName         = "PersonaAgent"
	ModeratorName       = "ModeratorAgent"
)

// Behavior flags.
const (
	FlagLossStreak     = "loss_streak"
	FlagRevengeTrading = "revenge_trading"
	FlagOvertrading    = "overtrading"
	FlagOverconfidence = "overconfidence"
	FlagHoldingLosers  = "holding_losers"
	FlagAveragingDown  = "averaging_down"
)

type BehaviorThresholds struct {
	LossStreak    int
	RevengeWindow time.Duration
	DailyTrades   int
	WinStreak     int
	OpenLosers    int
	AveragingBuys int
}

func DefaultBehaviorThresholds() BehaviorThresholds {
	return BehaviorThresholds{
		LossStreak:    3,
		RevengeWindow: 30 * time.Minute,
		DailyTrades:   10,
		WinStreak:     4,
		OpenLosers:    2,
		AveragingBuys: 3,
	}
}

// BehaviorMonitor looks for trading-psychology patterns in the user's trades.
type BehaviorMonitor struct {
	th BehaviorThresholds
	l  *applogger.Logger
}

func NewBehaviorMonitor(th BehaviorThresholds, l *applogger.Logger) *BehaviorMonitor {
	if l == nil {
		l = applogger.Nop()
	}
	return &BehaviorMonitor{th: th, l: l}
}

func (b *BehaviorMonitor) Run(_ context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error) {
	trades := ac.UserTrades
	if len(trades) == 0 {
		ac.BehaviorFlags = []string{}
		ac.Insights = []string{"No trades supplied, behavioral analysis skipped"}
		return ac, nil
	}

	flags := map[string]string{}
	if n := longestRun(trades, func(t models.Trade) bool { return t.IsLoss() }); n >= b.th.LossStreak {
		flags[FlagLossStreak] = fmt.Sprintf("%d losing trades in a row", n)
	}
	if n := longestRun(trades, func(t models.Trade) bool { return t.PnL > 0 }); n >= b.th.WinStreak {
		flags[FlagOverconfidence] = fmt.Sprintf("%d winning trades in a row, watch position sizing", n)
	}
	if gap, ok := b.revengeGap(trades); ok {
		flags[FlagRevengeTrading] = fmt.Sprintf("re-entered %s after a loss", gap.Round(time.Minute))
	}
	if day, n := busiestDay(trades); n > b.th.DailyTrades {
		flags[FlagOvertrading] = fmt.Sprintf("%d trades on %s", n, day)
	}
	if n := openLosers(trades); n >= b.th.OpenLosers {
		flags[FlagHoldingLosers] = fmt.Sprintf("%d open positions are under water", n)
	}
	if sym, n := averagingDown(trades); n >= b.th.AveragingBuys {
		flags[FlagAveragingDown] = fmt.Sprintf("%d buys of %s at falling prices", n, sym)
	}

	names := make([]string, 0, len(flags))
	for k := range flags {
		names = append(names, k)
	}
	sort.Strings(names)

	insights := []string{performanceLine(trades)}
	for _, k := range names {
		insights = append(insights, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), flags[k]))
	}

	ac.BehaviorFlags = names
	ac.Insights = insights
	b.l.Debug("behavior analysed",
		applogger.Int("trades", len(trades)),
		applogger.Strings("flags", names),
	)
	return ac, nil
}

func longestRun(trades []models.Trade, match func(models.Trade) bool) int {
	best, cur := 0, 0
	for _, t := range trades {
		if match(t) {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

// revengeGap finds the shortest pause between a loss and the next trade.
func (b *BehaviorMonitor) revengeGap(trades []models.Trade) (time.Duration, bool) {
	var (
		best  time.Duration
		found bool
	)
	for i := 1; i < len(trades); i++ {
		if !trades[i-1].IsLoss() {
			continue
		}
		prev, ok1 := xutil.ParseTime(trades[i-1].Timestamp)
		cur, ok2 := xutil.ParseTime(trades[i].Timestamp)
		if !ok1 || !ok2 {
			continue
		}
		gap := cur.Sub(prev)
		if gap >= 0 && gap <= b.th.RevengeWindow && (!found || gap < best) {
			best, found = gap, true
		}
	}
	return best, found
}

func busiestDay(trades []models.Trade) (string, int) {
	perDay := map[string]int{}
	for _, t := range trades {
		if ts, ok := xutil.ParseTime(t.Timestamp); ok {
			perDay[ts.UTC().Format("2006-01-02")]++
		}
	}
	day, n := "", 0
	for d, c := range perDay {
		if c > n || (c == n && d < day) {
			day, n = d, c
		}
	}
	return day, n
}

func openLosers(trades []models.Trade) int {
	n := 0
	for _, t := range trades {
		if strings.EqualFold(t.Status, "open") && t.PnL < 0 {
			n++
		}
	}
	return n
}

// averagingDown returns the longest run of consecutive buys of one symbol at
// strictly falling prices.
func averagingDown(trades []models.Trade) (string, int) {
	bestSym, best := "", 0
	run := 0
	for i, t := range trades {
		if !strings.EqualFold(t.Action, "buy") {
			run = 0
			continue
		}
		if run > 0 && i > 0 && trades[i-1].Symbol == t.Symbol && t.Price < trades[i-1].Price {
			run++
		} else {
			run = 1
		}
		if run > best {
			bestSym, best = t.Symbol, run
		}
	}
	return bestSym, best
}

func performanceLine(trades []models.Trade) string {
	wins, pnl := 0, 0.0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
		pnl += t.PnL
	}
	return fmt.Sprintf("%d trades, win rate %.1f%%, net pnl %.2f",
		len(trades), float64(wins)/float64(len(trades))*100, pnl)
}
