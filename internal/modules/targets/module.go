package targets

import (
	"signal_trader/internal/modules/targets/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("targets",
		fx.Provide(
			service.New,
		),
	)
}
