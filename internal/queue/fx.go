package queue

import (
	"github.com/smallbiznis/rotation/internal/queue/repository"
	"github.com/smallbiznis/rotation/internal/queue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("queue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
