package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"signal_trader/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errBadSize      = errors.New("size must be a positive whole number of contracts")
	errOtherProduct = errors.New("symbol is not the configured product")
)

// product: клиент торгует одним product_id, чужой символ туда уйти не должен.
// Пустой символ означает наш продукт.
func (c *Client) product(symbol string) (int, error) {
	if symbol != "" && !models.SameSymbol(symbol, c.symbol) {
		return 0, models.DataInvalid(symbol, errOtherProduct)
	}
	return c.productID, nil
}

// FetchOpenOrders lists open orders of the configured product.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	q := url.Values{}
	q.Set("product_ids", strconv.Itoa(c.productID))
	q.Set("states", models.OrderStateOpen)

	var raw []orderDTO
	if err := c.do(ctx, "open_orders", http.MethodGet, "/v2/orders", q, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(raw))
	for _, o := range raw {
		ord := o.toModel()
		if ord.Symbol == "" {
			ord.Symbol = symbol
		}
		out = append(out, ord)
	}
	return out, nil
}

func (c *Client) CreateLimitOrder(ctx context.Context, o models.LimitOrder) (models.Order, error) {
	productID, err := c.product(o.Symbol)
	if err != nil {
		return models.Order{}, err
	}
	size, err := contracts(o.Amount)
	if err != nil {
		return models.Order{}, err
	}
	tif := o.TimeInForce
	if tif == "" {
		tif = models.GTC
	}
	return c.createOrder(ctx, "create_limit", createOrderRequest{
		ProductID:     productID,
		Size:          size,
		Side:          string(o.Side),
		OrderType:     "limit_order",
		LimitPrice:    o.Price.String(),
		TimeInForce:   string(tif),
		ClientOrderID: newClientOrderID(),
	})
}

func (c *Client) CreateMarketOrder(ctx context.Context, o models.MarketOrder) (models.Order, error) {
	productID, err := c.product(o.Symbol)
	if err != nil {
		return models.Order{}, err
	}
	size, err := contracts(o.Amount)
	if err != nil {
		return models.Order{}, err
	}
	tif := o.TimeInForce
	if tif == "" {
		tif = models.IOC
	}
	return c.createOrder(ctx, "create_market", createOrderRequest{
		ProductID:     productID,
		Size:          size,
		Side:          string(o.Side),
		OrderType:     "market_order",
		TimeInForce:   string(tif),
		ReduceOnly:    o.ReduceOnly,
		ClientOrderID: newClientOrderID(),
	})
}

func (c *Client) createOrder(ctx context.Context, op string, req createOrderRequest) (models.Order, error) {
	var raw orderDTO
	if err := c.do(ctx, op, http.MethodPost, "/v2/orders", nil, req, &raw); err != nil {
		return models.Order{}, err
	}
	ord := raw.toModel()
	if ord.Symbol == "" {
		ord.Symbol = c.symbol
	}
	return ord, nil
}

func (c *Client) CancelOrder(ctx context.Context, id, symbol string) error {
	productID, err := c.product(symbol)
	if err != nil {
		return err
	}
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return c.do(ctx, "cancel", http.MethodDelete, "/v2/orders", nil, cancelOrderRequest{
		ID:        n,
		ProductID: productID,
	}, nil)
}

// AttachBracket puts a stop-loss bracket on a resting order.
func (c *Client) AttachBracket(ctx context.Context, orderID string, b models.Bracket) (models.Order, error) {
	n, err := parseID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	limit := b.StopLimitPrice
	if limit.IsZero() {
		limit = b.StopPrice
	}
	method := b.TriggerMethod
	if method == "" {
		method = "last_traded_price"
	}

	var raw orderDTO
	err = c.do(ctx, "bracket", http.MethodPut, "/v2/orders/bracket", nil, bracketRequest{
		ID:                        n,
		ProductID:                 c.productID,
		BracketStopLossPrice:      b.StopPrice.String(),
		BracketStopLossLimitPrice: limit.String(),
		BracketStopTriggerMethod:  method,
	}, &raw)
	if err != nil {
		return models.Order{}, err
	}
	ord := raw.toModel()
	if ord.ID == "0" {
		ord.ID = orderID
	}
	return ord, nil
}

// contracts: Delta принимает размер только целыми контрактами.
func contracts(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return 0, models.DataInvalid("size "+amount.String(), errBadSize)
	}
	return amount.IntPart(), nil
}

// client_order_id у Delta не длиннее 32 символов: uuid без дефисов.
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
