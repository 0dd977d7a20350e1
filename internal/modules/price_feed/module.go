package price_feed

import (
	"context"
	"time"

	"signal_trader/internal/modules/config"
	health "signal_trader/internal/modules/health/service"
	"signal_trader/internal/modules/price_feed/service"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

func NewFeed(cfg *config.Config, st *health.State) *service.Feed {
	return service.New(service.Options{
		WSURL:       cfg.Feed.WSURL,
		Symbol:      cfg.Feed.Symbol,
		OnConnState: st.SetWSConnected,
		OnPrice:     st.TouchPrice,
	})
}

func Module() fx.Option {
	return fx.Module("price_feed",
		fx.Provide(NewFeed),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, f *service.Feed) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					f.Start(runCtx)
					if cfg.Feed.SeedFromREST {
						go func() {
							ctx, cancelSeed := context.WithTimeout(runCtx, 10*time.Second)
							defer cancelSeed()
							if err := f.SeedFromREST(ctx, service.NewSeedClient(cfg.Feed.RESTBaseURL)); err != nil {
								logger.Warn("[FEED] REST seed failed: %v", err)
							}
						}()
					}
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					f.Stop()
					return nil
				},
			})
		}),
	)
}
