package service

import (
	"signal_trader/internal/helper"
	"signal_trader/internal/models"

	"github.com/shopspring/decimal"
)

// levels returns the limit entry and the bracket stop for a new order.
// A zone bound beats the percent fallback for the stop. Buy prices round
// down to the tick, sell prices round up.
func (o *Orchestrator) levels(side models.OrderSide, price decimal.Decimal, sig *models.Signal) (entry, stop decimal.Decimal) {
	if side == models.OrderBuy {
		entry = helper.OffsetDown(price, o.cfg.EntryOffsetPct)
		if z := sig.DemandZone.Max; z.Valid {
			stop = z.Value
		} else {
			stop = helper.OffsetDown(price, o.cfg.SLOffsetPct)
		}
		return helper.RoundDownToTick(entry, o.cfg.TickSize), helper.RoundDownToTick(stop, o.cfg.TickSize)
	}

	entry = helper.OffsetUp(price, o.cfg.EntryOffsetPct)
	if z := sig.SupplyZone.Min; z.Valid {
		stop = z.Value
	} else {
		stop = helper.OffsetUp(price, o.cfg.SLOffsetPct)
	}
	return helper.RoundUpToTick(entry, o.cfg.TickSize), helper.RoundUpToTick(stop, o.cfg.TickSize)
}
