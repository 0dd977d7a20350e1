package orchestrator

import (
	"context"

	"signal_trader/internal/modules/config"
	delta "signal_trader/internal/modules/delta_client/service"
	journal "signal_trader/internal/modules/journal/service"
	metrics "signal_trader/internal/modules/metrics/service"
	"signal_trader/internal/modules/orchestrator/service"
	feed "signal_trader/internal/modules/price_feed/service"
	store "signal_trader/internal/modules/signal_store/service"
	targets "signal_trader/internal/modules/targets/service"
	"signal_trader/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Cfg      *config.Config
	Gateway  *delta.Client
	Store    *store.Store
	Targets  *targets.Targets
	Feed     *feed.Feed
	Notifier notify.Notifier
	Journal  journal.Journal
	Recorder *metrics.Recorder
}

func NewOrchestrator(p Params) *service.Orchestrator {
	o := p.Cfg.Orders
	return service.New(
		service.Config{
			Symbol:                 p.Cfg.Symbol,
			Quantity:               decimal.NewFromFloat(o.Quantity),
			EntryOffsetPct:         o.EntryOffsetPct,
			SLOffsetPct:            o.SLOffsetPct,
			TickSize:               decimal.NewFromFloat(o.TickSize),
			SettleDelay:            o.SettleDelay,
			PollInterval:           o.PollInterval,
			CloseOppositeOnInvalid: o.CloseOppositeOnInvalid,
			TriggerMethod:          o.BracketTriggerMethod,
		},
		p.Gateway, p.Store, p.Targets, p.Feed,
		service.WithNotifier(p.Notifier),
		service.WithJournal(p.Journal),
		service.WithRecorder(p.Recorder),
	)
}

func Module() fx.Option {
	return fx.Module("orchestrator",
		fx.Provide(NewOrchestrator),
		fx.Invoke(func(lc fx.Lifecycle, o *service.Orchestrator) {
			runCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						o.Run(runCtx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					// незавершённая серия ордеров не откатывается
					cancel()
					select {
					case <-done:
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}
