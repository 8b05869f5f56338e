package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/abuse"
	"github.com/smallbiznis/rotation/internal/authorization"
	"github.com/smallbiznis/rotation/internal/catalog"
	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/config"
	"github.com/smallbiznis/rotation/internal/credential"
	"github.com/smallbiznis/rotation/internal/job"
	"github.com/smallbiznis/rotation/internal/ledger"
	"github.com/smallbiznis/rotation/internal/logger"
	"github.com/smallbiznis/rotation/internal/margin"
	"github.com/smallbiznis/rotation/internal/migration"
	"github.com/smallbiznis/rotation/internal/observability/metrics"
	"github.com/smallbiznis/rotation/internal/pricing"
	"github.com/smallbiznis/rotation/internal/providers"
	"github.com/smallbiznis/rotation/internal/queue"
	"github.com/smallbiznis/rotation/internal/ratelimit"
	"github.com/smallbiznis/rotation/internal/renewal"
	"github.com/smallbiznis/rotation/internal/slot"
	"github.com/smallbiznis/rotation/internal/subscription"
	"github.com/smallbiznis/rotation/internal/user"
	"github.com/smallbiznis/rotation/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,
		authorization.Module,
		providers.Module,
		pricing.Module,

		// Functional Domains
		user.Module,
		catalog.Module,
		subscription.Module,
		credential.Module,
		queue.Module,
		ledger.Module,
		margin.Module,
		abuse.Module,
		job.Module,
		slot.Module,
		renewal.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
