package pricing

import (
	"github.com/smallbiznis/rotation/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewOracle uses a fixed rate when PRICE_SATS_PER_USD is set and otherwise
// the unconfigured oracle, wrapped in the TTL cache either way.
func NewOracle(cfg config.Config, log *zap.Logger) Oracle {
	var upstream Oracle = Unconfigured{}
	if cfg.PriceSatsPerUSD > 0 {
		upstream = FixedRateOracle{SatsPerUSD: cfg.PriceSatsPerUSD}
		log.Info("using fixed price oracle", zap.Int64("sats_per_usd", cfg.PriceSatsPerUSD))
	}
	return NewCachedOracle(upstream, DefaultCacheSize, DefaultCacheTTL)
}

func NewFeeSource(cfg config.RotationConfig) FeeSource {
	return StaticFee(cfg.PlatformFeeSats)
}

var Module = fx.Module("pricing",
	fx.Provide(NewOracle),
	fx.Provide(NewFeeSource),
)
