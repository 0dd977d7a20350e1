package service

import (
	"context"
	"errors"
	"time"

	"signal_trader/internal/models"
	journal "signal_trader/internal/modules/journal/service"
	metrics "signal_trader/internal/modules/metrics/service"
	"signal_trader/pkg/logger"
	"signal_trader/pkg/tracing"

	"github.com/opentracing/opentracing-go"
	"github.com/shopspring/decimal"
)

var errNoPrice = errors.New("no signal price and no live price")

type Gateway interface {
	FetchPositions(ctx context.Context) ([]models.Position, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	CreateLimitOrder(ctx context.Context, o models.LimitOrder) (models.Order, error)
	CreateMarketOrder(ctx context.Context, o models.MarketOrder) (models.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	AttachBracket(ctx context.Context, orderID string, b models.Bracket) (models.Order, error)
}

type SignalSource interface {
	Latest(ctx context.Context) (*models.Signal, error)
}

// TargetsWriter: оркестратор единственный, кто пишет цели.
type TargetsWriter interface {
	SetZones(long, short *decimal.Decimal)
	SetTakeProfit(v bool)
}

type PriceSource interface {
	Price() (decimal.Decimal, bool)
}

type Notifier interface {
	Sendf(format string, args ...any)
}

type Config struct {
	Symbol                 string
	Quantity               decimal.Decimal
	EntryOffsetPct         float64
	SLOffsetPct            float64
	TickSize               decimal.Decimal
	SettleDelay            time.Duration
	PollInterval           time.Duration
	CloseOppositeOnInvalid bool
	TriggerMethod          string
}

// Orchestrator turns each new signal into cancel/close/place actions.
// Only the signal loop calls it, so it needs no locking of its own.
type Orchestrator struct {
	cfg     Config
	gw      Gateway
	store   SignalSource
	targets TargetsWriter
	price   PriceSource

	notifier Notifier
	journal  journal.Journal
	rec      *metrics.Recorder
	sleep    func(ctx context.Context, d time.Duration)

	last *models.Signal
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option          { return func(o *Orchestrator) { o.notifier = n } }
func WithJournal(j journal.Journal) Option    { return func(o *Orchestrator) { o.journal = j } }
func WithRecorder(r *metrics.Recorder) Option { return func(o *Orchestrator) { o.rec = r } }

// WithSleep replaces the settle pause, tests pass a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func New(cfg Config, gw Gateway, store SignalSource, tg TargetsWriter, price PriceSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		gw:      gw,
		store:   store,
		targets: tg,
		price:   price,
		journal: journal.Nop{},
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Last returns the last signal recorded as processed.
func (o *Orchestrator) Last() *models.Signal { return o.last }

// Run primes from the current signal and then polls until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	o.Prime(ctx)

	t := time.NewTicker(o.cfg.PollInterval)
	defer t.Stop()

	logger.Info("[SIGNAL] polling every %s for %s", o.cfg.PollInterval, o.cfg.Symbol)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[SIGNAL] stopped")
			return
		case <-t.C:
			o.Poll(ctx)
		}
	}
}

// Prime загружает текущий сигнал при старте: цели обновляем, ордера не ставим.
func (o *Orchestrator) Prime(ctx context.Context) {
	sig, err := o.store.Latest(ctx)
	if err != nil {
		logger.Warn("[SIGNAL] initial signal unavailable: %v", err)
		return
	}
	if sig == nil {
		logger.Info("[SIGNAL] no initial signal")
		return
	}
	o.targets.SetZones(sig.TargetLong(), sig.TargetShort())
	o.last = sig
	logger.Info("[SIGNAL] primed with %q (target long %s, short %s), not trading it",
		sig.LastSignal.Text, sig.SupplyZone.Min.Raw, sig.DemandZone.Max.Raw)
}

// Poll reads the latest signal and processes it when it differs from the last one.
func (o *Orchestrator) Poll(ctx context.Context) models.Result {
	sig, err := o.store.Latest(ctx)
	if err != nil {
		res := models.Failed("read signal", err)
		o.logResult(nil, res)
		return res
	}
	if sig == nil {
		return models.Skipped("no signal")
	}
	if !sig.DiffersFrom(o.last) {
		return models.Skipped("unchanged")
	}

	logger.Info("[SIGNAL] new signal: %q price=%s valid=%v", sig.LastSignal.Text, sig.LastSignal.Price.Raw, !sig.Invalid())
	res, placed := o.process(ctx, sig)
	o.logResult(sig, res)

	// транзиентная ошибка до выставления лимитки: повторим на следующем опросе.
	// закрытия и отмены при повторе ничего не найдут
	if res.Outcome == models.OutcomeTransient && !placed {
		return res
	}
	o.last = sig
	return res
}

// Process runs one signal through the state machine.
func (o *Orchestrator) Process(ctx context.Context, sig *models.Signal) models.Result {
	res, _ := o.process(ctx, sig)
	return res
}

// process also reports whether a limit order reached the exchange.
func (o *Orchestrator) process(ctx context.Context, sig *models.Signal) (res models.Result, placed bool) {
	var span opentracing.Span
	span, ctx = tracing.StartSpan(ctx, "orchestrator.Process")
	kind := sig.Kind()
	span.SetTag("signal.kind", string(kind))
	defer func() {
		span.SetTag("signal.outcome", res.Outcome.String())
		tracing.Finish(span, res.Err)
		o.rec.Signal(string(kind), res.Outcome.String())
	}()

	if kind == models.KindUnknown {
		return models.Skipped("unknown signal text"), false
	}

	// цели обновляем до любых решений: движок должен видеть свежие зоны
	o.targets.SetZones(sig.TargetLong(), sig.TargetShort())

	if kind == models.KindTakeProfit {
		o.targets.SetTakeProfit(true)
		o.notify("🎯 [%s] Take profit: стопы переводятся в безубыток", o.cfg.Symbol)
		return models.Success("take profit detected"), false
	}
	o.targets.SetTakeProfit(false)

	price, err := o.resolvePrice(sig)
	if err != nil {
		return models.Failed("resolve price", err), false
	}

	side := models.OrderBuy
	if kind == models.KindSell {
		side = models.OrderSell
	}

	if sig.Invalid() && !o.cfg.CloseOppositeOnInvalid {
		return models.Skipped("position marked invalid"), false
	}

	closed, err := o.closeOpposite(ctx, side)
	if err != nil {
		return models.Failed("close opposite", err), false
	}
	if closed > 0 {
		o.sleep(ctx, o.cfg.SettleDelay)
	}

	if sig.Invalid() {
		return models.Skipped("position marked invalid"), false
	}

	if o.cancelStale(ctx, side) > 0 {
		o.sleep(ctx, o.cfg.SettleDelay)
	}

	dup, err := o.hasPosition(ctx, side)
	if err != nil {
		return models.Failed("duplicate guard", err), false
	}
	if dup {
		return models.Skipped("position already open on " + string(side)), false
	}

	entry, stop := o.levels(side, price, sig)
	order, err := o.gw.CreateLimitOrder(ctx, models.LimitOrder{
		Symbol:      o.cfg.Symbol,
		Side:        side,
		Amount:      o.cfg.Quantity,
		Price:       entry,
		TimeInForce: models.GTC,
	})
	o.rec.Order("limit", err == nil)
	if err != nil {
		return models.Failed("place limit", err), false
	}
	o.journal.Record(ctx, journal.Event{
		Kind:    journal.KindLimitPlaced,
		OrderID: order.ID,
		Symbol:  o.cfg.Symbol,
		Side:    side,
		Amount:  o.cfg.Quantity,
		Price:   entry,
		Payload: map[string]any{"signal": sig.LastSignal.Text, "signal_price": price.String()},
	})
	logger.Info("[SIGNAL] %s limit placed: id=%s entry=%s qty=%s", side, order.ID, entry, o.cfg.Quantity)

	_, err = o.gw.AttachBracket(ctx, order.ID, models.Bracket{
		Symbol:         o.cfg.Symbol,
		StopPrice:      stop,
		StopLimitPrice: stop,
		TriggerMethod:  o.cfg.TriggerMethod,
	})
	o.rec.Order("bracket", err == nil)
	if err != nil {
		o.notify("⚠️ [%s] ордер %s без стопа: %v", o.cfg.Symbol, order.ID, err)
		return models.Failed("attach bracket", err), true
	}
	o.journal.Record(ctx, journal.Event{
		Kind:      journal.KindBracketAttached,
		OrderID:   order.ID,
		Symbol:    o.cfg.Symbol,
		Side:      side,
		Amount:    o.cfg.Quantity,
		Price:     entry,
		StopPrice: &stop,
	})

	o.notify("✅ [%s] %s limit @ %s, SL %s, qty %s", o.cfg.Symbol, side, entry, stop, o.cfg.Quantity)
	return models.Success("order placed"), true
}

// resolvePrice prefers the price embedded in the signal over the live feed.
func (o *Orchestrator) resolvePrice(sig *models.Signal) (decimal.Decimal, error) {
	if p := sig.LastSignal.Price; p.Valid && p.Value.IsPositive() {
		return p.Value, nil
	}
	if o.price != nil {
		if p, ok := o.price.Price(); ok {
			logger.Info("[SIGNAL] signal price %q unusable, using live %s", sig.LastSignal.Price.Raw, p)
			return p, nil
		}
	}
	return decimal.Zero, models.Transient("price", errNoPrice)
}

func (o *Orchestrator) logResult(sig *models.Signal, res models.Result) {
	text := ""
	if sig != nil {
		text = sig.LastSignal.Text
	}
	switch res.Outcome {
	case models.OutcomeSuccess, models.OutcomeSkipped:
		logger.Info("[SIGNAL] %q: %s (%s)", text, res.Outcome, res.Reason)
	case models.OutcomeDataInvalid:
		logger.Warn("[SIGNAL] %q: %s: %v", text, res.Reason, res.Err)
	default:
		logger.Error("[SIGNAL] %q: %s: %v", text, res.Reason, res.Err)
	}
}

func (o *Orchestrator) notify(format string, args ...any) {
	if o.notifier != nil {
		o.notifier.Sendf(format, args...)
	}
}
