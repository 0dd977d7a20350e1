package service

import (
	"sync/atomic"
	"time"
)

// State пишут фид (ws), движок (тики) и main (ready); читает HTTP.
type State struct {
	startedAt time.Time

	ready     atomic.Bool
	ws        atomic.Bool
	lastTick  atomic.Int64 // unix seconds
	lastPrice atomic.Int64 // unix seconds
}

type Status struct {
	Ready         bool  `json:"ready"`
	WSConnected   bool  `json:"wsConnected"`
	UptimeSec     int64 `json:"uptimeSec"`
	LastTickUnix  int64 `json:"lastTickUnix"`
	LastPriceUnix int64 `json:"lastPriceUnix"`
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool)        { s.ready.Store(v) }
func (s *State) SetWSConnected(v bool)  { s.ws.Store(v) }
func (s *State) TouchTick(t time.Time)  { s.lastTick.Store(t.Unix()) }
func (s *State) TouchPrice(t time.Time) { s.lastPrice.Store(t.Unix()) }

func (s *State) Ready() bool { return s.ready.Load() }

// Check: ready и движок тикал не позже staleAfter назад.
// staleAfter <= 0 отключает проверку тиков.
func (s *State) Check(now time.Time, staleAfter time.Duration) (bool, string) {
	if !s.ready.Load() {
		return false, "not ready"
	}
	if staleAfter <= 0 {
		return true, "ready"
	}
	last := s.lastTick.Load()
	if last == 0 {
		return false, "no ticks yet"
	}
	if age := now.Sub(time.Unix(last, 0)); age > staleAfter {
		return false, "engine stalled for " + age.Truncate(time.Second).String()
	}
	return true, "ready"
}

func (s *State) Status() Status {
	return Status{
		Ready:         s.ready.Load(),
		WSConnected:   s.ws.Load(),
		UptimeSec:     int64(time.Since(s.startedAt).Seconds()),
		LastTickUnix:  s.lastTick.Load(),
		LastPriceUnix: s.lastPrice.Load(),
	}
}
