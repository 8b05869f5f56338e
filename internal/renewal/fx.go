package renewal

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("renewal",
	fx.Provide(ConfigFrom),
	fx.Provide(New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, runner *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return runner.Start()
		},
		OnStop: func(ctx context.Context) error {
			return runner.Stop(ctx)
		},
	})
}
