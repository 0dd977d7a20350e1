package models

import "github.com/shopspring/decimal"

type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// Opposite of buy is sell and vice versa.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderBuy {
		return OrderSell
	}
	return OrderBuy
}

// Opposes is true when a position of this sign would be flattened by s.
func (s OrderSide) Opposes(p Position) bool {
	if s == OrderBuy {
		return p.Size.IsNegative()
	}
	return p.Size.IsPositive()
}

// Matches is true when p is already on the side s would open.
func (s OrderSide) Matches(p Position) bool {
	if s == OrderBuy {
		return p.Size.IsPositive()
	}
	return p.Size.IsNegative()
}

type TimeInForce string

const (
	GTC TimeInForce = "gtc"
	IOC TimeInForce = "ioc"
)

const OrderStateOpen = "open"

// Order: ордер в представлении биржи, ядро только просит мутации.
type Order struct {
	ID               string
	ClientOrderID    string
	Symbol           string
	Side             OrderSide
	Amount           decimal.Decimal
	Price            decimal.Decimal
	BracketStopPrice *decimal.Decimal
	Status           string
}

func (o Order) IsOpen() bool { return o.Status == OrderStateOpen }

type LimitOrder struct {
	Symbol      string
	Side        OrderSide
	Amount      decimal.Decimal
	Price       decimal.Decimal
	TimeInForce TimeInForce
}

type MarketOrder struct {
	Symbol      string
	Side        OrderSide
	Amount      decimal.Decimal
	ReduceOnly  bool
	TimeInForce TimeInForce
}

// Bracket: стоп-лосс, который биржа ведёт после заполнения входа.
type Bracket struct {
	Symbol         string
	StopPrice      decimal.Decimal
	StopLimitPrice decimal.Decimal
	TriggerMethod  string
}
