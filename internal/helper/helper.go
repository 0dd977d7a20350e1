package helper

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Pct converts a percent value (0.5 means 0.5%) to a fraction.
func Pct(percent float64) decimal.Decimal {
	return decimal.NewFromFloat(percent).Div(hundred)
}

// OffsetDown returns px*(1-pct%).
func OffsetDown(px decimal.Decimal, percent float64) decimal.Decimal {
	return px.Mul(decimal.NewFromInt(1).Sub(Pct(percent)))
}

// OffsetUp returns px*(1+pct%).
func OffsetUp(px decimal.Decimal, percent float64) decimal.Decimal {
	return px.Mul(decimal.NewFromInt(1).Add(Pct(percent)))
}

func RoundDownToTick(px, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return px
	}
	return px.Div(tick).Floor().Mul(tick)
}

func RoundUpToTick(px, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return px
	}
	return px.Div(tick).Ceil().Mul(tick)
}

// Fmt2: округление до центов для логов и дисплея.
func Fmt2(d decimal.Decimal) string { return d.StringFixed(2) }

// Fmt2Ptr renders N/A for an unset value.
func Fmt2Ptr(d *decimal.Decimal) string {
	if d == nil {
		return "N/A"
	}
	return Fmt2(*d)
}
