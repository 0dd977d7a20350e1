package postgres

import (
	"context"
	"errors"
	"time"

	"signal_trader/internal/modules/config"
	"signal_trader/pkg/db"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

const migrationsDir = "migrations"

// NewPostgres: без DSN или без базы возвращает nil, и журнал работает как no-op.
func NewPostgres(lc fx.Lifecycle, cfg *config.Config) (*db.Postgres, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.Connect(ctx, db.Options{DSN: cfg.DB, MaxConns: 4})
	if errors.Is(err, db.ErrNoDSN) {
		logger.Info("[JOURNAL] db_dsn is empty, journal disabled")
		return nil, nil
	}
	if err != nil {
		logger.Error("[JOURNAL] postgres unavailable, journal disabled: %v", err)
		return nil, nil
	}

	n, err := pg.Migrate(ctx, migrationsDir)
	if err != nil {
		pg.Close()
		logger.Error("[JOURNAL] migrations failed, journal disabled: %v", err)
		return nil, nil
	}
	logger.Info("[JOURNAL] postgres connected, %d migration(s) applied", n)

	lc.Append(fx.StopHook(pg.Close))
	return pg, nil
}

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(NewPostgres),
	)
}
