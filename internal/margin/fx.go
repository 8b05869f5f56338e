package margin

import (
	"github.com/smallbiznis/rotation/internal/margin/service"
	"go.uber.org/fx"
)

var Module = fx.Module("margin.service",
	fx.Provide(service.ConfigFrom),
	fx.Provide(service.NewService),
)
