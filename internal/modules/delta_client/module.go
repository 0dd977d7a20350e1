package delta_client

import (
	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/delta_client/service"
	metrics "signal_trader/internal/modules/metrics/service"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

func NewClient(cfg *config.Config, rec *metrics.Recorder) (*service.Client, error) {
	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		logger.Warn("[DELTA] api key/secret not set, private calls will be rejected")
	}
	return service.New(service.Options{
		BaseURL:   cfg.Exchange.BaseURL,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		ProductID: cfg.Exchange.ProductID,
		Symbol:    cfg.Symbol,
		Timeout:   cfg.Exchange.Timeout,
	}, rec)
}

func Module() fx.Option {
	return fx.Module("delta_client",
		fx.Provide(NewClient),
	)
}
