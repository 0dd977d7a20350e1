package signal_store

import (
	"context"

	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/signal_store/service"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

func NewStore(lc fx.Lifecycle, cfg *config.Config) (*service.Store, error) {
	s, err := service.New(
		service.WithAddr(cfg.Redis.Addr),
		service.WithPassword(cfg.Redis.Password),
		service.WithDB(cfg.Redis.DB),
		service.WithMode(service.Mode(cfg.Redis.Mode)),
		service.WithKey(cfg.SignalKey()),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("[SIGNAL] redis %s, %s mode, key %q", cfg.Redis.Addr, s.Mode(), s.Key())
	if err := s.Ping(context.Background()); err != nil {
		logger.Warn("[SIGNAL] redis %s unreachable at start, will retry on poll: %v", cfg.Redis.Addr, err)
	}

	lc.Append(fx.StopHook(s.Close))
	return s, nil
}

func Module() fx.Option {
	return fx.Module("signal_store",
		fx.Provide(NewStore),
	)
}
