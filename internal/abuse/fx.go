package abuse

import (
	"github.com/smallbiznis/rotation/internal/abuse/repository"
	"github.com/smallbiznis/rotation/internal/abuse/service"
	"go.uber.org/fx"
)

var Module = fx.Module("abuse.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.ConfigFrom),
	fx.Provide(service.NewService),
)
