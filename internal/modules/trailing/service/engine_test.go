package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signal_trader/internal/models"
	targets "signal_trader/internal/modules/targets/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu        sync.Mutex
	positions []models.Position
	fetchErr  error
	closeErr  map[string]error
	fetches   int
	closes    []models.MarketOrder

	// closing/release: если заданы, закрытие висит до release
	closing chan struct{}
	release chan struct{}
}

func (g *fakeGateway) FetchPositions(context.Context) ([]models.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return append([]models.Position(nil), g.positions...), nil
}

func (g *fakeGateway) CreateMarketOrder(_ context.Context, o models.MarketOrder) (models.Order, error) {
	if g.release != nil {
		close(g.closing)
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.closeErr[o.Symbol]; err != nil {
		return models.Order{}, err
	}
	g.closes = append(g.closes, o)
	return models.Order{ID: "close-1", Symbol: o.Symbol, Side: o.Side, Amount: o.Amount}, nil
}

type fakePrice struct {
	px decimal.Decimal
	ok bool
}

func (p *fakePrice) Price() (decimal.Decimal, bool) { return p.px, p.ok }
func (p *fakePrice) WaitFirst(context.Context, time.Duration) bool {
	return p.ok
}

type fakeNotifier struct{ msgs []string }

func (n *fakeNotifier) Sendf(format string, _ ...any) { n.msgs = append(n.msgs, format) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(by time.Duration) { c.t = c.t.Add(by) }

type env struct {
	gw     *fakeGateway
	price  *fakePrice
	tg     *targets.Targets
	clk    *clock
	notify *fakeNotifier
	engine *Engine
}

func newEnv(positions ...models.Position) *env {
	e := &env{
		gw:     &fakeGateway{positions: positions, closeErr: map[string]error{}},
		price:  &fakePrice{},
		tg:     targets.New(),
		clk:    &clock{t: time.Date(2025, 4, 24, 10, 0, 0, 0, time.UTC)},
		notify: &fakeNotifier{},
	}
	e.engine = New(Config{
		Symbol:          "BTCUSD",
		TickInterval:    time.Second,
		RefreshInterval: 5 * time.Second,
		FixedOffsetPct:  0.5,
		LockFraction:    0.9,
		KeyStrategy:     models.KeyAuto,
	}, e.gw, e.price, e.tg, WithClock(e.clk.now), WithNotifier(e.notify))
	return e
}

func (e *env) tick(px string) TickReport {
	e.price.px, e.price.ok = d(px), true
	r := e.engine.Tick(context.Background())
	e.clk.advance(time.Second)
	return r
}

func long(id, entry, size string) models.Position {
	return models.Position{ID: id, Symbol: "BTCUSD", EntryPrice: d(entry), Size: d(size)}
}

func TestMaxProfitNeverDecreases(t *testing.T) {
	e := newEnv(long("1", "100", "2"))
	key := models.PositionKey("BTCUSD#1")

	var seen []string
	for _, px := range []string{"110", "105", "112", "101"} {
		e.tick(px)
		seen = append(seen, e.engine.States()[key].MaxProfitAbs.String())
	}
	assert.Equal(t, []string{"10", "10", "12", "12"}, seen)
	assert.Empty(t, e.gw.closes)
}

func TestRefreshIntervalBoundsFetches(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	for i := 0; i < 5; i++ {
		e.tick("105")
	}
	assert.Equal(t, 1, e.gw.fetches)

	e.tick("105")
	assert.Equal(t, 2, e.gw.fetches)
}

func TestFetchFailureKeepsPreviousSnapshot(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.tick("110")

	e.gw.fetchErr = errors.New("502")
	e.clk.advance(10 * time.Second)
	r := e.tick("111")

	require.False(t, r.Idle)
	assert.Equal(t, models.OutcomeSuccess, r.Results["BTCUSD#1"].Outcome)
	assert.Equal(t, "11", e.engine.States()["BTCUSD#1"].MaxProfitAbs.String())
}

func TestEmptySnapshotClearsState(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.tick("110")
	require.Len(t, e.engine.States(), 1)

	e.gw.positions = nil
	e.clk.advance(10 * time.Second)
	r := e.tick("110")

	assert.True(t, r.Idle)
	assert.Empty(t, e.engine.States())

	// позиция вернулась, трейл стартует с нуля
	e.gw.positions = []models.Position{long("1", "100", "1")}
	e.clk.advance(10 * time.Second)
	e.tick("103")
	assert.Equal(t, "3", e.engine.States()["BTCUSD#1"].MaxProfitAbs.String())
}

func TestOtherSymbolsAndZeroSizeIgnored(t *testing.T) {
	e := newEnv(
		models.Position{ID: "7", Symbol: "ETHUSD", EntryPrice: d("100"), Size: d("1")},
		models.Position{ID: "9", Symbol: "BTCUSDT", EntryPrice: d("100"), Size: d("1")},
		models.Position{ID: "8", Symbol: "BTCUSD", EntryPrice: d("100"), Size: decimal.Zero},
	)
	r := e.tick("50")

	assert.True(t, r.Idle)
	assert.Empty(t, e.gw.closes)
}

func TestStatesReadableWhileCloseInFlight(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.gw.closing = make(chan struct{})
	e.gw.release = make(chan struct{})
	e.price.px, e.price.ok = d("99"), true

	done := make(chan TickReport, 1)
	go func() { done <- e.engine.Tick(context.Background()) }()

	select {
	case <-e.gw.closing:
	case <-time.After(2 * time.Second):
		t.Fatal("close was not sent")
	}

	states := make(chan map[models.PositionKey]models.TrailingState, 1)
	go func() { states <- e.engine.States() }()
	select {
	case st := <-states:
		assert.True(t, st["BTCUSD#1"].Closing)
	case <-time.After(time.Second):
		t.Fatal("States blocked behind the exchange call")
	}

	close(e.gw.release)
	r := <-done
	assert.Equal(t, "closed", r.Results["BTCUSD#1"].Reason)
	assert.Len(t, e.gw.closes, 1)
}

func TestCloseIsReduceOnlyIOCForFullSize(t *testing.T) {
	e := newEnv(long("1", "100", "3"))
	r := e.tick("99")

	require.Len(t, e.gw.closes, 1)
	c := e.gw.closes[0]
	assert.Equal(t, models.OrderSell, c.Side)
	assert.True(t, d("3").Equal(c.Amount))
	assert.True(t, c.ReduceOnly)
	assert.Equal(t, models.IOC, c.TimeInForce)
	assert.Equal(t, "closed", r.Results["BTCUSD#1"].Reason)
	assert.Len(t, e.notify.msgs, 1)
}

func TestShortCloseBuysBack(t *testing.T) {
	e := newEnv(models.Position{ID: "2", Symbol: "BTCUSD", EntryPrice: d("100"), Size: d("-4")})
	e.tick("101")

	require.Len(t, e.gw.closes, 1)
	assert.Equal(t, models.OrderBuy, e.gw.closes[0].Side)
	assert.True(t, d("4").Equal(e.gw.closes[0].Amount))
}

func TestCloseForcesRefreshAndDebounces(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.tick("99")
	require.Len(t, e.gw.closes, 1)
	assert.True(t, e.engine.States()["BTCUSD#1"].Closing)

	// биржа ещё не отдала закрытие, но снапшот перечитан сразу
	e.gw.positions = nil
	r := e.tick("98")
	assert.Equal(t, 2, e.gw.fetches)
	assert.True(t, r.Idle)
	assert.Len(t, e.gw.closes, 1)
}

func TestClosingSkipsSecondCloseFromSameSnapshot(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.tick("99")
	require.Len(t, e.gw.closes, 1)

	// перечитка падает: старый снапшот, повторного закрытия нет
	e.gw.fetchErr = errors.New("timeout")
	r := e.tick("98")

	assert.Equal(t, models.OutcomeSkipped, r.Results["BTCUSD#1"].Outcome)
	assert.Len(t, e.gw.closes, 1)
}

func TestCloseFailureRetriedNextTick(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.gw.closeErr["BTCUSD"] = models.Transient("create order", errors.New("503"))

	r := e.tick("99")
	assert.Equal(t, models.OutcomeTransient, r.Results["BTCUSD#1"].Outcome)
	assert.False(t, e.engine.States()["BTCUSD#1"].Closing)

	delete(e.gw.closeErr, "BTCUSD")
	e.tick("99")
	assert.Len(t, e.gw.closes, 1)
}

func TestPerPositionFaultIsolation(t *testing.T) {
	e := newEnv(
		long("1", "0", "1"),
		long("2", "100", "1"),
	)
	r := e.tick("99")

	assert.Equal(t, models.OutcomeDataInvalid, r.Results["BTCUSD#1"].Outcome)
	assert.Equal(t, "closed", r.Results["BTCUSD#2"].Reason)
	assert.Len(t, e.gw.closes, 1)
}

func TestExchangeIDStrategyRejectsMissingID(t *testing.T) {
	e := newEnv(long("", "100", "1"))
	e.engine.cfg.KeyStrategy = models.KeyExchangeID

	r := e.tick("101")
	assert.Equal(t, models.OutcomeDataInvalid, r.Results["BTCUSD"].Outcome)
}

func TestCompositeKeyResetsOnNewAverage(t *testing.T) {
	e := newEnv(long("", "100", "1"))
	e.tick("110")
	require.Contains(t, e.engine.States(), models.PositionKey("BTCUSD_100_1"))

	e.gw.positions = []models.Position{long("", "102", "2")}
	e.clk.advance(10 * time.Second)
	e.tick("105")

	states := e.engine.States()
	assert.NotContains(t, states, models.PositionKey("BTCUSD_100_1"))
	assert.Equal(t, "3", states["BTCUSD_102_2"].MaxProfitAbs.String())
}

func TestTakeProfitForcesBreakevenOnNextTick(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.tg.SetZones(dp("115"), nil)
	e.tick("120")
	require.Equal(t, models.RuleLock90, e.engine.States()["BTCUSD#1"].Rule)

	e.tg.SetTakeProfit(true)
	e.tick("119")

	st := e.engine.States()["BTCUSD#1"]
	assert.Equal(t, models.RuleBreakeven, st.Rule)
	assert.True(t, d("100").Equal(st.TrailingStop))
}

func TestNoPriceSkipsEvaluation(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	r := e.engine.Tick(context.Background())

	assert.True(t, r.NoPrice)
	assert.Empty(t, e.engine.States())
}

func TestDisplayOnlyReplacedOnChange(t *testing.T) {
	e := newEnv(long("1", "100", "1"))
	e.tick("105")
	first := e.engine.States()["BTCUSD#1"].LastDisplay
	require.NotNil(t, first)

	e.tick("105")
	assert.Same(t, first, e.engine.States()["BTCUSD#1"].LastDisplay)

	e.tick("106")
	next := e.engine.States()["BTCUSD#1"].LastDisplay
	assert.NotSame(t, first, next)
	assert.Equal(t, "106.00", next.Live)
	assert.Equal(t, "6.00", next.ProfitPct)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEnv()
	e.price.px, e.price.ok = d("100"), true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.engine.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}
