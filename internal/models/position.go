package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position: снимок открытой позиции с биржи. Size со знаком: >0 long, <0 short.
type Position struct {
	ID         string
	Symbol     string
	EntryPrice decimal.Decimal
	Size       decimal.Decimal
}

func (p Position) Side() Side {
	if p.Size.IsNegative() {
		return SideShort
	}
	return SideLong
}

func (p Position) IsLong() bool { return p.Size.IsPositive() }

// SameSymbol сравнивает тикеры точно: BTCUSDT не относится к BTCUSD.
func SameSymbol(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// On: позиция по инструменту symbol.
func (p Position) On(symbol string) bool { return SameSymbol(p.Symbol, symbol) }

// Abs size for closing orders.
func (p Position) AbsSize() decimal.Decimal { return p.Size.Abs() }

// CloseSide is the order side that flattens the position.
func (p Position) CloseSide() OrderSide {
	if p.IsLong() {
		return OrderSell
	}
	return OrderBuy
}

type PositionKey string

type KeyStrategy string

const (
	KeyAuto       KeyStrategy = "auto"
	KeyComposite  KeyStrategy = "composite"
	KeyExchangeID KeyStrategy = "exchange_id"
)

// CompositeKey is symbol_entry_size. A partial fill or a new average price
// produces a new key, so trailing state starts over.
func (p Position) CompositeKey() PositionKey {
	return PositionKey(fmt.Sprintf("%s_%s_%s", p.Symbol, p.EntryPrice.String(), p.Size.String()))
}

// Key resolves the identity of p under the given strategy.
func (p Position) Key(strategy KeyStrategy) (PositionKey, error) {
	switch strategy {
	case KeyComposite:
		return p.CompositeKey(), nil
	case KeyExchangeID:
		if p.ID == "" {
			return "", fmt.Errorf("position %s has no exchange id: %w", p.Symbol, ErrDataInvalid)
		}
		return PositionKey(p.Symbol + "#" + p.ID), nil
	default:
		if p.ID != "" {
			return PositionKey(p.Symbol + "#" + p.ID), nil
		}
		return p.CompositeKey(), nil
	}
}
