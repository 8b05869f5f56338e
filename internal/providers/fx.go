package providers

import (
	"github.com/smallbiznis/rotation/internal/providers/giftcard"
	"github.com/smallbiznis/rotation/internal/providers/payment"
	"github.com/smallbiznis/rotation/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the default collaborator ports. Deployments replace them
// with fx.Decorate once real integrations are configured.
var Module = fx.Module("providers",
	fx.Provide(
		func() payment.Provider { return payment.Unconfigured{} },
		func() giftcard.Provider { return giftcard.Unconfigured{} },
		func(log *zap.Logger) slack.Provider { return slack.NewLogProvider(log) },
	),
)
