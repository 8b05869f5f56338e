package slot

import (
	"github.com/smallbiznis/rotation/internal/slot/repository"
	"github.com/smallbiznis/rotation/internal/slot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("slot.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.ConfigFrom),
	fx.Provide(service.NewService),
)
