package credential

import (
	"github.com/smallbiznis/rotation/internal/credential/repository"
	"github.com/smallbiznis/rotation/internal/credential/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credential.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.SealerFromConfig),
	fx.Provide(service.NewService),
)
