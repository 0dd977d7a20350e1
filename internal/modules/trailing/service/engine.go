package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
	journal "signal_trader/internal/modules/journal/service"
	metrics "signal_trader/internal/modules/metrics/service"
	targets "signal_trader/internal/modules/targets/service"
	"signal_trader/pkg/logger"

	"github.com/shopspring/decimal"
)

var errNonPositive = errors.New("must be positive")

type Gateway interface {
	FetchPositions(ctx context.Context) ([]models.Position, error)
	CreateMarketOrder(ctx context.Context, o models.MarketOrder) (models.Order, error)
}

type PriceSource interface {
	Price() (decimal.Decimal, bool)
	WaitFirst(ctx context.Context, timeout time.Duration) bool
}

type TargetsReader interface {
	Load() targets.Snapshot
}

type Notifier interface {
	Sendf(format string, args ...any)
}

type HealthState interface {
	TouchTick(t time.Time)
}

type Config struct {
	Symbol            string
	TickInterval      time.Duration
	RefreshInterval   time.Duration
	FirstPriceTimeout time.Duration
	FixedOffsetPct    float64
	LockFraction      float64
	KeyStrategy       models.KeyStrategy
	USDDivisor        float64
}

// TickReport: что произошло за один тик, по позициям.
type TickReport struct {
	Idle    bool
	NoPrice bool
	Results map[models.PositionKey]models.Result
}

// Engine recomputes a protective stop for every open position on each tick
// and market-closes positions whose stop has been crossed.
type Engine struct {
	cfg     Config
	params  RuleParams
	divisor decimal.Decimal

	gw      Gateway
	price   PriceSource
	targets TargetsReader

	notifier Notifier
	journal  journal.Journal
	rec      *metrics.Recorder
	health   HealthState
	now      func() time.Time

	mu           sync.RWMutex
	states       map[models.PositionKey]*models.TrailingState
	positions    []models.Position
	fetchedAt    time.Time
	hadPositions bool
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option          { return func(e *Engine) { e.notifier = n } }
func WithJournal(j journal.Journal) Option    { return func(e *Engine) { e.journal = j } }
func WithRecorder(r *metrics.Recorder) Option { return func(e *Engine) { e.rec = r } }
func WithHealth(h HealthState) Option         { return func(e *Engine) { e.health = h } }
func WithClock(now func() time.Time) Option   { return func(e *Engine) { e.now = now } }

func New(cfg Config, gw Gateway, price PriceSource, tg TargetsReader, opts ...Option) *Engine {
	if cfg.USDDivisor <= 0 {
		cfg.USDDivisor = 1000
	}
	if cfg.KeyStrategy == "" {
		cfg.KeyStrategy = models.KeyAuto
	}
	e := &Engine{
		cfg: cfg,
		params: RuleParams{
			FixedOffset:  helper.Pct(cfg.FixedOffsetPct),
			LockFraction: decimal.NewFromFloat(cfg.LockFraction),
		},
		divisor:      decimal.NewFromFloat(cfg.USDDivisor),
		gw:           gw,
		price:        price,
		targets:      tg,
		journal:      journal.Nop{},
		now:          time.Now,
		states:       make(map[models.PositionKey]*models.TrailingState),
		hadPositions: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run ждёт первую цену и крутит тики до отмены ctx.
func (e *Engine) Run(ctx context.Context) {
	if !e.price.WaitFirst(ctx, e.cfg.FirstPriceTimeout) {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("[TRAIL] live price unavailable after %s, ticking without it", e.cfg.FirstPriceTimeout)
	}

	t := time.NewTicker(e.cfg.TickInterval)
	defer t.Stop()

	logger.Info("[TRAIL] started for %s: tick=%s refresh=%s", e.cfg.Symbol, e.cfg.TickInterval, e.cfg.RefreshInterval)
	for {
		e.Tick(ctx)
		select {
		case <-ctx.Done():
			logger.Info("[TRAIL] stopped")
			return
		case <-t.C:
		}
	}
}

// closeJob: позиция, чей стоп пробит; закрытие уходит на биржу уже без мьютекса.
type closeJob struct {
	key  models.PositionKey
	pos  models.Position
	rule models.TrailRule
	stop decimal.Decimal
}

// Tick runs one evaluation pass. Errors of one position never stop the others.
// Gateway and journal calls run outside e.mu.
func (e *Engine) Tick(ctx context.Context) TickReport {
	now := e.now()
	if e.health != nil {
		e.health.TouchTick(now)
	}
	e.rec.EngineTick()

	if e.refreshDue(now) {
		all, err := e.gw.FetchPositions(ctx)
		e.applyRefresh(all, err)
	}

	e.mu.Lock()
	report, live, jobs := e.evaluate()
	e.mu.Unlock()

	for _, j := range jobs {
		report.Results[j.key] = e.close(ctx, j, live)
	}
	if !report.Idle && !report.NoPrice {
		e.rec.PositionsTracked(e.tracked())
	}
	return report
}

// refreshDue also stamps fetchedAt, so a failing fetch is retried only after the interval.
func (e *Engine) refreshDue(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.fetchedAt.IsZero() && now.Sub(e.fetchedAt) < e.cfg.RefreshInterval {
		return false
	}
	e.fetchedAt = now
	return true
}

// applyRefresh swaps in a new snapshot. On fetch failure the previous one stays in use.
func (e *Engine) applyRefresh(all []models.Position, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		logger.Error("[TRAIL] fetch positions failed, keeping %d cached: %v", len(e.positions), err)
		return
	}

	next := make([]models.Position, 0, len(all))
	active := make(map[models.PositionKey]struct{}, len(all))
	for _, p := range all {
		if p.Size.IsZero() || !p.On(e.cfg.Symbol) {
			continue
		}
		next = append(next, p)
		if k, err := p.Key(e.cfg.KeyStrategy); err == nil {
			active[k] = struct{}{}
		}
	}
	e.positions = next

	// подчистим трейл-стейт для закрытых позиций
	for k, st := range e.states {
		if _, ok := active[k]; !ok {
			delete(e.states, k)
			continue
		}
		st.Closing = false
	}
}

// evaluate runs under e.mu: rules, state and display, no I/O.
func (e *Engine) evaluate() (TickReport, decimal.Decimal, []closeJob) {
	if len(e.positions) == 0 {
		if e.hadPositions {
			logger.Info("[TRAIL] No open positions. Profit trailing paused.")
			e.hadPositions = false
		}
		clear(e.states)
		e.rec.PositionsTracked(0)
		return TickReport{Idle: true}, decimal.Zero, nil
	}
	if !e.hadPositions {
		logger.Info("[TRAIL] Open positions detected. Profit trailing resumed.")
		e.hadPositions = true
	}

	live, ok := e.price.Price()
	if !ok {
		return TickReport{NoPrice: true}, decimal.Zero, nil
	}
	e.rec.LivePrice(live.InexactFloat64())

	tg := e.targets.Load()
	report := TickReport{Results: make(map[models.PositionKey]models.Result, len(e.positions))}
	var jobs []closeJob
	for _, p := range e.positions {
		key, res, job := e.processOne(p, live, tg)
		if job != nil {
			jobs = append(jobs, *job)
			continue
		}
		if res.Outcome != models.OutcomeSuccess && res.Outcome != models.OutcomeSkipped {
			logger.Error("[TRAIL] %s: %s: %v", key, res.Reason, res.Err)
		}
		report.Results[key] = res
	}
	return report, live, jobs
}

func (e *Engine) tracked() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.states)
}

func (e *Engine) processOne(
	p models.Position,
	live decimal.Decimal,
	tg targets.Snapshot,
) (models.PositionKey, models.Result, *closeJob) {
	key, err := p.Key(e.cfg.KeyStrategy)
	if err != nil {
		return models.PositionKey(p.Symbol), models.Failed("position key", err), nil
	}
	if !p.EntryPrice.IsPositive() {
		return key, models.Failed("entry price", models.DataInvalid("entry", errNonPositive)), nil
	}

	st, ok := e.states[key]
	if !ok {
		st = &models.TrailingState{}
		e.states[key] = st
	}

	side := p.Side()
	maxProfit := st.UpdateMax(CurrentProfit(side, p.EntryPrice, live))
	st.Rule, st.TrailingStop = SelectRule(RuleInput{
		Side:      side,
		Entry:     p.EntryPrice,
		Live:      live,
		MaxProfit: maxProfit,
		Targets:   tg,
	}, e.params)

	e.logDisplay(key, st, p, live, tg)

	if !ShouldClose(side, live, st.TrailingStop) {
		return key, models.Success("held"), nil
	}
	if st.Closing {
		return key, models.Skipped("close already submitted"), nil
	}
	// помечаем заранее: второй тик не отправит дубль, пока идёт запрос
	st.Closing = true
	return key, models.Result{}, &closeJob{key: key, pos: p, rule: st.Rule, stop: st.TrailingStop}
}

func (e *Engine) close(ctx context.Context, j closeJob, live decimal.Decimal) models.Result {
	p := j.pos
	order := models.MarketOrder{
		Symbol:      p.Symbol,
		Side:        p.CloseSide(),
		Amount:      p.AbsSize(),
		ReduceOnly:  true,
		TimeInForce: models.IOC,
	}
	res, err := e.gw.CreateMarketOrder(ctx, order)
	e.rec.PositionClose(string(j.rule), err == nil)

	e.mu.Lock()
	if err != nil {
		// позиция остаётся, следующий тик попробует снова
		if st, ok := e.states[j.key]; ok {
			st.Closing = false
		}
	} else {
		// форсируем перечитку позиций на следующем тике
		e.fetchedAt = time.Time{}
	}
	e.mu.Unlock()

	if err != nil {
		logger.Error("[TRAIL] %s: close on %s: %v", j.key, j.rule, err)
		return models.Failed("close on "+string(j.rule), err)
	}

	logger.Info("[TRAIL] %s stop triggered for %s at %s (stop %s). Closed: %s",
		j.rule, j.key, helper.Fmt2(live), helper.Fmt2(j.stop), res.ID)
	stop := j.stop
	e.journal.Record(ctx, journal.Event{
		Kind:      journal.KindMarketClose,
		OrderID:   res.ID,
		Symbol:    p.Symbol,
		Side:      order.Side,
		Amount:    order.Amount,
		Price:     live,
		StopPrice: &stop,
		Payload:   map[string]any{"rule": string(j.rule), "key": string(j.key)},
	})
	if e.notifier != nil {
		e.notifier.Sendf("🛑 [%s] %s закрыта по %s: live=%s stop=%s",
			p.Symbol, p.Side(), j.rule, helper.Fmt2(live), helper.Fmt2(j.stop))
	}
	return models.Success("closed")
}

// logDisplay writes the position line only when its rendering changed.
func (e *Engine) logDisplay(
	key models.PositionKey,
	st *models.TrailingState,
	p models.Position,
	live decimal.Decimal,
	tg targets.Snapshot,
) {
	d := e.render(st, p, live, tg)
	if st.LastDisplay != nil && *st.LastDisplay == d {
		return
	}
	st.LastDisplay = &d
	logger.Info("[TRAIL] Order: %s | %s", key, d)
}

func (e *Engine) render(st *models.TrailingState, p models.Position, live decimal.Decimal, tg targets.Snapshot) models.Display {
	side := p.Side()
	pct := st.MaxProfitAbs.Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
	target := tg.TargetShort
	if side == models.SideLong {
		target = tg.TargetLong
	}
	return models.Display{
		Entry:     helper.Fmt2(p.EntryPrice),
		Live:      helper.Fmt2(live),
		ProfitPct: helper.Fmt2(pct),
		ProfitUSD: helper.Fmt2(RawProfit(p, live).Div(e.divisor)),
		MaxProfit: helper.Fmt2(st.MaxProfitAbs),
		Rule:      st.Rule,
		Stop:      helper.Fmt2(st.TrailingStop),
		Target:    helper.Fmt2Ptr(target),
		Side:      side,
		Size:      p.Size.String(),
	}
}

// States returns a copy of the trailing state, keyed by position.
func (e *Engine) States() map[models.PositionKey]models.TrailingState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[models.PositionKey]models.TrailingState, len(e.states))
	for k, st := range e.states {
		out[k] = *st
	}
	return out
}
