package service

import "github.com/shopspring/decimal"

// Доля исходного объёма, закрываемая на каждом уровне тейка.
var levelPcts = map[int]decimal.Decimal{
	1: decimal.RequireFromString("0.50"),
	2: decimal.RequireFromString("0.25"),
	3: decimal.RequireFromString("0.25"),
}

// ExitAmount returns how much to exit at a take-profit level: the level's share
// of the original size floored to whole lots, never more than what is left.
// Unknown levels exit nothing.
func ExitAmount(original, exitedSoFar decimal.Decimal, level int) decimal.Decimal {
	pct, ok := levelPcts[level]
	if !ok {
		return decimal.Zero
	}
	qty := original.Mul(pct).Floor()
	remaining := original.Sub(exitedSoFar)
	return decimal.Max(decimal.Zero, decimal.Min(qty, remaining))
}
