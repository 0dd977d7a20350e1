package order_events

import (
	"context"
	"fmt"
	"signal_trader/internal/modules/journal/service/pg/order_events/sql"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Row: запись журнала в доменном виде.
type Row struct {
	ID        int64
	Kind      string
	OrderID   string
	Symbol    string
	Side      string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	StopPrice *decimal.Decimal
	Payload   map[string]any
}

// OrderEvents implement db store
type OrderEvents struct {
	sql *sql.Queries
}

// New instance
func New() *OrderEvents {
	return &OrderEvents{
		sql: sql.New(),
	}
}

func (o *OrderEvents) Insert(ctx context.Context, tx pgx.Tx, row *Row) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("OrderEvents.Insert: %w", err)
		}
	}()

	payload := []byte("{}")
	if len(row.Payload) > 0 {
		payload, err = sonic.Marshal(row.Payload)
		if err != nil {
			return 0, err
		}
	}

	var stop decimal.NullDecimal
	if row.StopPrice != nil {
		stop = decimal.NewNullDecimal(*row.StopPrice)
	}

	return o.sql.Insert(ctx, tx, &sql.InsertParams{
		Kind:      row.Kind,
		OrderID:   row.OrderID,
		Symbol:    row.Symbol,
		Side:      row.Side,
		Amount:    row.Amount,
		Price:     row.Price,
		StopPrice: stop,
		Payload:   payload,
	})
}

func (o *OrderEvents) ListRecent(ctx context.Context, tx pgx.Tx, symbol string, limit int32) (rows []*Row, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("OrderEvents.ListRecent: %w", err)
		}
	}()

	resp, err := o.sql.ListRecent(ctx, tx, &sql.ListRecentParams{Symbol: symbol, Limit: limit})
	if err != nil {
		return nil, err
	}

	rows = make([]*Row, 0, len(resp))
	for i := range resp {
		r := &Row{
			ID:      resp[i].ID,
			Kind:    resp[i].Kind,
			OrderID: resp[i].OrderID,
			Symbol:  resp[i].Symbol,
			Side:    resp[i].Side,
			Amount:  resp[i].Amount,
			Price:   resp[i].Price,
		}
		if resp[i].StopPrice.Valid {
			sp := resp[i].StopPrice.Decimal
			r.StopPrice = &sp
		}
		if len(resp[i].Payload) > 0 {
			if err = sonic.Unmarshal(resp[i].Payload, &r.Payload); err != nil {
				return nil, err
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}
