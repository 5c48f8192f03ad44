package fulfillment

import (
	"context"

	"github.com/timehug/timehug/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Run),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		PollInterval:      cfg.Generator.PollInterval,
		BatchSize:         cfg.Generator.BatchSize,
		RecoveryThreshold: cfg.Generator.RecoveryThreshold,
		RequestTimeout:    cfg.Generator.RequestTimeout,
		StoreTimeout:      cfg.Generator.StoreTimeout,
	}.withDefaults()
}

func Run(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
