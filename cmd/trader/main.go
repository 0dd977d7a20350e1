package main

import (
	"context"
	"os"

	"signal_trader/internal/modules/config"
	delta_client "signal_trader/internal/modules/delta_client"
	delta "signal_trader/internal/modules/delta_client/service"
	"signal_trader/internal/modules/health"
	healthsvc "signal_trader/internal/modules/health/service"
	"signal_trader/internal/modules/journal"
	journalsvc "signal_trader/internal/modules/journal/service"
	"signal_trader/internal/modules/metrics"
	"signal_trader/internal/modules/orchestrator"
	"signal_trader/internal/modules/postgres"
	price_feed "signal_trader/internal/modules/price_feed"
	feed "signal_trader/internal/modules/price_feed/service"
	signal_store "signal_trader/internal/modules/signal_store"
	"signal_trader/internal/modules/targets"
	targetssvc "signal_trader/internal/modules/targets/service"
	"signal_trader/internal/modules/trailing"
	trailingsvc "signal_trader/internal/modules/trailing/service"
	"signal_trader/internal/notify"
	"signal_trader/pkg/logger"
	"signal_trader/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		// логгер ещё не поднят
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	zl, err := logger.Init(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Tracing.Enabled {
		closer, err := tracing.Init(tracing.Config{
			ServiceName: cfg.ServiceName,
			Host:        cfg.Tracing.Host,
			Port:        cfg.Tracing.Port,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("tracing disabled: %v", err)
		} else {
			defer closer()
		}
	}

	logger.Info("starting %s for %s (feed %s, redis %s mode)", cfg.ServiceName, cfg.Symbol, cfg.Feed.Symbol, cfg.Redis.Mode)

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zl.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		config.Module(cfg),
		metrics.Module(),
		health.Module(),
		postgres.Module(),
		journal.Module(),
		targets.Module(),
		delta_client.Module(),
		price_feed.Module(),
		signal_store.Module(),
		fx.Provide(
			// Notifier: если TELEGRAM_* нет, используем stdout
			func(cfg *config.Config, gw *delta.Client, tg *targetssvc.Targets, j journalsvc.Journal) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					src := notify.Sources{Symbol: cfg.Symbol, Positions: gw, Targets: tg}
					if h, ok := j.(notify.OrderHistory); ok {
						src.History = h
					}
					tgm, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, src)
					if err == nil {
						return tgm
					}
					logger.Warn("telegram unavailable, notifications go to log: %v", err)
				}
				return notify.NewStdout()
			},
		),
		trailing.Module(),
		orchestrator.Module(),
		fx.Invoke(runNotifier),
		fx.Invoke(markReady),
	)
	app.Run()
}

func runNotifier(lc fx.Lifecycle, n notify.Notifier, e *trailingsvc.Engine) {
	tg, ok := n.(*notify.Telegram)
	if !ok {
		return
	}
	tg.SetTrail(e)

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := tg.Start(runCtx); err != nil {
				return err
			}
			tg.Sendf("🚀 Трейдер запущен")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			tg.Stop()
			return nil
		},
	})
}

// markReady: готовы, когда пришла первая цена; оба цикла к этому моменту уже стартовали.
func markReady(lc fx.Lifecycle, cfg *config.Config, f *feed.Feed, st *healthsvc.State) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				for runCtx.Err() == nil {
					if f.WaitFirst(runCtx, cfg.Feed.FirstPriceTimeout) {
						st.SetReady(true)
						logger.Info("ready: first price received")
						return
					}
					if runCtx.Err() == nil {
						logger.Warn("still no price after %s", cfg.Feed.FirstPriceTimeout)
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			st.SetReady(false)
			cancel()
			return nil
		},
	})
}
