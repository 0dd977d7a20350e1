package journal

import (
	"signal_trader/internal/modules/journal/service"
	"signal_trader/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			func(pg *db.Postgres) service.Journal {
				if pg == nil {
					return service.Nop{}
				}
				return service.NewPG(pg)
			},
		),
	)
}
