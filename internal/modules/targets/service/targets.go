package service

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Snapshot: неизменяемое значение общих целей. Читатель получает копию.
type Snapshot struct {
	TargetLong         *decimal.Decimal
	TargetShort        *decimal.Decimal
	TakeProfitDetected bool
}

// Targets is the cell shared by the signal loop (the only writer) and the
// trailing loop (reader). Each write publishes a fresh Snapshot through an
// atomic pointer, so a reader never observes a half-applied update.
type Targets struct {
	v atomic.Pointer[Snapshot]
}

func New() *Targets {
	t := &Targets{}
	t.v.Store(&Snapshot{})
	return t
}

func (t *Targets) Load() Snapshot {
	return *t.v.Load()
}

// SetZones replaces both targets. nil leaves the target unset.
func (t *Targets) SetZones(long, short *decimal.Decimal) {
	next := t.Load()
	next.TargetLong = clone(long)
	next.TargetShort = clone(short)
	t.v.Store(&next)
}

func (t *Targets) SetTakeProfit(v bool) {
	next := t.Load()
	next.TakeProfitDetected = v
	t.v.Store(&next)
}

func clone(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
