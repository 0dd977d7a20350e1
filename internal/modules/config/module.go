package config

import "go.uber.org/fx"

// Module отдаёт в граф уже загруженный *Config: main читает его раньше,
// чтобы поднять логгер и трейсер до старта fx.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
