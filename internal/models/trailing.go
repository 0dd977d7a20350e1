package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type TrailRule string

const (
	RuleFixedStop TrailRule = "fixed_stop"
	RuleLock90    TrailRule = "lock_90"
	RuleBreakeven TrailRule = "breakeven"
)

// TrailingState: состояние трейла по одной позиции, принадлежит только движку.
type TrailingState struct {
	MaxProfitAbs decimal.Decimal
	TrailingStop decimal.Decimal
	Rule         TrailRule
	LastDisplay  *Display
	Closing      bool
}

// UpdateMax keeps the peak favourable excursion; it never decreases.
func (s *TrailingState) UpdateMax(current decimal.Decimal) decimal.Decimal {
	if current.GreaterThan(s.MaxProfitAbs) {
		s.MaxProfitAbs = current
	}
	return s.MaxProfitAbs
}

// Display is the rendered line for one position. Values are pre-rounded
// strings so that equality means "the log line would look the same".
type Display struct {
	Entry     string
	Live      string
	ProfitPct string
	ProfitUSD string
	MaxProfit string
	Rule      TrailRule
	Stop      string
	Target    string
	Side      Side
	Size      string
}

func (d Display) String() string {
	return fmt.Sprintf(
		"Size: %s (%s) | Entry: %s | Live: %s | PnL: %s%% | USD: %s | Max: %s | Rule: %s | SL: %s | Target: %s",
		d.Size, d.Side, d.Entry, d.Live, d.ProfitPct, d.ProfitUSD, d.MaxProfit, d.Rule, d.Stop, d.Target,
	)
}
