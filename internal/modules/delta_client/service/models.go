package service

import (
	"encoding/json"

	"signal_trader/internal/models"
)

// envelope: общий конверт ответа Delta v2.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Context any    `json:"context,omitempty"`
}

type positionDTO struct {
	ProductID     int        `json:"product_id"`
	ProductSymbol string     `json:"product_symbol"`
	Size          models.Num `json:"size"`
	EntryPrice    models.Num `json:"entry_price"`
	Margin        models.Num `json:"margin"`
	LiqPrice      models.Num `json:"liquidation_price"`
}

type orderDTO struct {
	ID                   int64      `json:"id"`
	ClientOrderID        string     `json:"client_order_id"`
	ProductID            int        `json:"product_id"`
	ProductSymbol        string     `json:"product_symbol"`
	Side                 string     `json:"side"`
	Size                 models.Num `json:"size"`
	UnfilledSize         models.Num `json:"unfilled_size"`
	LimitPrice           models.Num `json:"limit_price"`
	State                string     `json:"state"`
	BracketStopLossPrice models.Num `json:"bracket_stop_loss_price"`
}

type createOrderRequest struct {
	ProductID     int    `json:"product_id"`
	Size          int64  `json:"size"`
	Side          string `json:"side"`
	OrderType     string `json:"order_type"`
	LimitPrice    string `json:"limit_price,omitempty"`
	TimeInForce   string `json:"time_in_force"`
	ReduceOnly    bool   `json:"reduce_only"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type cancelOrderRequest struct {
	ID        int64 `json:"id"`
	ProductID int   `json:"product_id"`
}

type bracketRequest struct {
	ID                        int64  `json:"id"`
	ProductID                 int    `json:"product_id"`
	BracketStopLossPrice      string `json:"bracket_stop_loss_price"`
	BracketStopLossLimitPrice string `json:"bracket_stop_loss_limit_price"`
	BracketStopTriggerMethod  string `json:"bracket_stop_trigger_method"`
}

func (o orderDTO) toModel() models.Order {
	out := models.Order{
		ID:            formatID(o.ID),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.ProductSymbol,
		Side:          models.OrderSide(o.Side),
		Amount:        o.Size.Value,
		Price:         o.LimitPrice.Value,
		Status:        o.State,
	}
	if o.UnfilledSize.Valid {
		out.Amount = o.UnfilledSize.Value
	}
	out.BracketStopPrice = o.BracketStopLossPrice.Ptr()
	return out
}
