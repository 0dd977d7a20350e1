package service

import (
	"context"

	"signal_trader/internal/models"
	journal "signal_trader/internal/modules/journal/service"
	"signal_trader/pkg/logger"
)

func (o *Orchestrator) ours(symbol string) bool {
	return models.SameSymbol(symbol, o.cfg.Symbol)
}

// closeOpposite market-closes every position whose sign opposes side.
// A failed close is logged and does not stop the others.
func (o *Orchestrator) closeOpposite(ctx context.Context, side models.OrderSide) (int, error) {
	positions, err := o.gw.FetchPositions(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, p := range positions {
		if !o.ours(p.Symbol) || p.Size.IsZero() || !side.Opposes(p) {
			continue
		}
		res, err := o.gw.CreateMarketOrder(ctx, models.MarketOrder{
			Symbol:      p.Symbol,
			Side:        p.CloseSide(),
			Amount:      p.AbsSize(),
			ReduceOnly:  true,
			TimeInForce: models.IOC,
		})
		o.rec.Order("market_close", err == nil)
		if err != nil {
			logger.Error("[SIGNAL] close %s %s failed: %v", p.Side(), p.Symbol, err)
			continue
		}
		closed++
		logger.Info("[SIGNAL] closed opposite %s %s size=%s before %s", p.Side(), p.Symbol, p.AbsSize(), side)
		o.journal.Record(ctx, journal.Event{
			Kind:    journal.KindMarketClose,
			OrderID: res.ID,
			Symbol:  p.Symbol,
			Side:    p.CloseSide(),
			Amount:  p.AbsSize(),
			Price:   p.EntryPrice,
			Payload: map[string]any{"reason": "opposite_signal"},
		})
		o.notify("🔄 [%s] закрыта %s %s перед %s", p.Symbol, p.Side(), p.AbsSize(), side)
	}
	return closed, nil
}

// cancelStale cancels resting orders in two passes: first the ones on the
// opposite side, then, from a fresh order list, stale ones on the same side.
// Returns how many cancels succeeded.
func (o *Orchestrator) cancelStale(ctx context.Context, side models.OrderSide) int {
	n := o.cancelWhere(ctx, "conflicting", func(ord models.Order) bool { return ord.Side != side })
	n += o.cancelWhere(ctx, "duplicate", func(ord models.Order) bool { return ord.Side == side })
	return n
}

func (o *Orchestrator) cancelWhere(ctx context.Context, what string, match func(models.Order) bool) int {
	orders, err := o.gw.FetchOpenOrders(ctx, o.cfg.Symbol)
	if err != nil {
		logger.Error("[SIGNAL] fetch open orders for %s pass: %v", what, err)
		return 0
	}

	n := 0
	for _, ord := range orders {
		if !ord.IsOpen() || !o.ours(ord.Symbol) || !match(ord) {
			continue
		}
		err := o.gw.CancelOrder(ctx, ord.ID, ord.Symbol)
		o.rec.Order("cancel", err == nil)
		if err != nil {
			logger.Error("[SIGNAL] cancel %s order %s failed: %v", what, ord.ID, err)
			continue
		}
		n++
		logger.Info("[SIGNAL] cancelled %s %s order %s @ %s", what, ord.Side, ord.ID, ord.Price)
		o.journal.Record(ctx, journal.Event{
			Kind:      journal.KindCancel,
			OrderID:   ord.ID,
			Symbol:    ord.Symbol,
			Side:      ord.Side,
			Amount:    ord.Amount,
			Price:     ord.Price,
			StopPrice: ord.BracketStopPrice,
			Payload:   map[string]any{"pass": what},
		})
	}
	return n
}

// hasPosition is the duplicate guard: a position already on side blocks a new entry.
func (o *Orchestrator) hasPosition(ctx context.Context, side models.OrderSide) (bool, error) {
	positions, err := o.gw.FetchPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if o.ours(p.Symbol) && side.Matches(p) {
			return true, nil
		}
	}
	return false, nil
}
