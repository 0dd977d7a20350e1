package service

import (
	"context"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/modules/journal/service/pg/order_events"
	"signal_trader/pkg/db"
	"signal_trader/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindLimitPlaced     Kind = "limit_placed"
	KindBracketAttached Kind = "bracket_attached"
	KindMarketClose     Kind = "market_close"
	KindCancel          Kind = "cancel"
)

// Event: одно действие с ордером, которое пишем в журнал.
type Event struct {
	Kind      Kind
	OrderID   string
	Symbol    string
	Side      models.OrderSide
	Amount    decimal.Decimal
	Price     decimal.Decimal
	StopPrice *decimal.Decimal
	Payload   map[string]any
}

// Journal records order actions. Recording never fails the caller.
type Journal interface {
	Record(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// PG пишет события в order_events.
type PG struct {
	tx      db.TxManager
	events  *order_events.OrderEvents
	timeout time.Duration
}

func NewPG(tx db.TxManager) *PG {
	return &PG{
		tx:      tx,
		events:  order_events.New(),
		timeout: 3 * time.Second,
	}
}

func (j *PG) Record(ctx context.Context, ev Event) {
	// журнал не должен тормозить торговый цикл
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()

	err := j.tx.InTx(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := j.events.Insert(ctxTx, tx, &order_events.Row{
			Kind:      string(ev.Kind),
			OrderID:   ev.OrderID,
			Symbol:    ev.Symbol,
			Side:      string(ev.Side),
			Amount:    ev.Amount,
			Price:     ev.Price,
			StopPrice: ev.StopPrice,
			Payload:   ev.Payload,
		})
		return err
	})
	if err != nil {
		logger.Error("[JOURNAL] record %s %s: %v", ev.Kind, ev.OrderID, err)
	}
}

// Recent returns the latest events for symbol, newest first.
func (j *PG) Recent(ctx context.Context, symbol string, limit int32) (rows []*order_events.Row, err error) {
	err = j.tx.InTx(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err = j.events.ListRecent(ctxTx, tx, symbol, limit)
		return err
	})
	return rows, err
}
