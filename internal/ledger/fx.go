package ledger

import (
	"github.com/smallbiznis/rotation/internal/ledger/repository"
	"github.com/smallbiznis/rotation/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.ConfigFrom),
	fx.Provide(service.NewService),
)
