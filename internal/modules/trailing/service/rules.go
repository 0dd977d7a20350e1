package service

import (
	"signal_trader/internal/models"
	targets "signal_trader/internal/modules/targets/service"

	"github.com/shopspring/decimal"
)

// RuleInput: всё, от чего зависит выбор правила на одном тике.
type RuleInput struct {
	Side      models.Side
	Entry     decimal.Decimal
	Live      decimal.Decimal
	MaxProfit decimal.Decimal
	Targets   targets.Snapshot
}

// RuleParams are the configured constants of the rule table.
type RuleParams struct {
	FixedOffset  decimal.Decimal // fraction, 0.005 == 0.5%
	LockFraction decimal.Decimal // 0.9
}

// SelectRule picks exactly one rule, first match wins:
// breakeven on a take-profit signal, lock once the zone target is reached,
// otherwise a fixed offset from entry.
func SelectRule(in RuleInput, p RuleParams) (models.TrailRule, decimal.Decimal) {
	tg := in.Targets
	switch {
	case tg.TakeProfitDetected:
		return models.RuleBreakeven, in.Entry

	case in.Side == models.SideLong && tg.TargetLong != nil && in.Live.GreaterThanOrEqual(*tg.TargetLong):
		return models.RuleLock90, in.Entry.Add(p.LockFraction.Mul(in.MaxProfit))

	case in.Side == models.SideShort && tg.TargetShort != nil && in.Live.LessThanOrEqual(*tg.TargetShort):
		return models.RuleLock90, in.Entry.Sub(p.LockFraction.Mul(in.MaxProfit))
	}

	offset := in.Entry.Mul(p.FixedOffset)
	if in.Side == models.SideLong {
		return models.RuleFixedStop, in.Entry.Sub(offset)
	}
	return models.RuleFixedStop, in.Entry.Add(offset)
}

// ShouldClose is true when live has crossed stop against the position.
func ShouldClose(side models.Side, live, stop decimal.Decimal) bool {
	if side == models.SideLong {
		return live.LessThan(stop)
	}
	return live.GreaterThan(stop)
}

// CurrentProfit is the favourable price distance from entry, per unit.
func CurrentProfit(side models.Side, entry, live decimal.Decimal) decimal.Decimal {
	if side == models.SideLong {
		return live.Sub(entry)
	}
	return entry.Sub(live)
}

// RawProfit is the PnL of the whole position in quote units.
func RawProfit(p models.Position, live decimal.Decimal) decimal.Decimal {
	return CurrentProfit(p.Side(), p.EntryPrice, live).Mul(p.AbsSize())
}
