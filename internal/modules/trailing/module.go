package trailing

import (
	"context"

	"signal_trader/internal/models"
	"signal_trader/internal/modules/config"
	delta "signal_trader/internal/modules/delta_client/service"
	health "signal_trader/internal/modules/health/service"
	journal "signal_trader/internal/modules/journal/service"
	metrics "signal_trader/internal/modules/metrics/service"
	feed "signal_trader/internal/modules/price_feed/service"
	targets "signal_trader/internal/modules/targets/service"
	"signal_trader/internal/modules/trailing/service"
	"signal_trader/internal/notify"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Cfg      *config.Config
	Gateway  *delta.Client
	Feed     *feed.Feed
	Targets  *targets.Targets
	Notifier notify.Notifier
	Journal  journal.Journal
	Recorder *metrics.Recorder
	Health   *health.State
}

func NewEngine(p Params) *service.Engine {
	return service.New(
		service.Config{
			Symbol:            p.Cfg.Symbol,
			TickInterval:      p.Cfg.Trailing.TickInterval,
			RefreshInterval:   p.Cfg.Trailing.PositionRefresh,
			FirstPriceTimeout: p.Cfg.Feed.FirstPriceTimeout,
			FixedOffsetPct:    p.Cfg.Trailing.FixedStopOffsetPct,
			LockFraction:      p.Cfg.Trailing.LockFraction,
			KeyStrategy:       models.KeyStrategy(p.Cfg.Trailing.PositionKey),
			USDDivisor:        p.Cfg.Trailing.USDDivisor,
		},
		p.Gateway, p.Feed, p.Targets,
		service.WithNotifier(p.Notifier),
		service.WithJournal(p.Journal),
		service.WithRecorder(p.Recorder),
		service.WithHealth(p.Health),
	)
}

// Module запускает цикл трейлинга в фоне на всё время жизни приложения.
func Module() fx.Option {
	return fx.Module("trailing",
		fx.Provide(NewEngine),
		fx.Invoke(func(lc fx.Lifecycle, e *service.Engine) {
			// ctx хука живёт только до конца OnStart, цикл держим на своём
			runCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						e.Run(runCtx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
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
