// Package pricing converts between fiat cents and sats and supplies the
// platform fee charged per lock-in.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/smallbiznis/rotation/pkg/apperror"
)

type Oracle interface {
	ConvertUSDCentsToSats(ctx context.Context, cents int64) (int64, error)
	ConvertSatsToUSDCents(ctx context.Context, sats int64) (int64, error)
}

var (
	ErrNotConfigured = apperror.New(apperror.KindProviderError, "price_oracle_not_configured")
	ErrNegativeValue = apperror.New(apperror.KindInvalidInput, "negative_amount")
)

type Unconfigured struct{}

func (Unconfigured) ConvertUSDCentsToSats(ctx context.Context, cents int64) (int64, error) {
	return 0, ErrNotConfigured
}

func (Unconfigured) ConvertSatsToUSDCents(ctx context.Context, sats int64) (int64, error) {
	return 0, ErrNotConfigured
}

// FixedRateOracle converts at a constant sats-per-dollar rate. Conversions
// round up so a purchase is never underfunded.
type FixedRateOracle struct {
	SatsPerUSD int64
}

func (o FixedRateOracle) ConvertUSDCentsToSats(ctx context.Context, cents int64) (int64, error) {
	if cents < 0 {
		return 0, ErrNegativeValue
	}
	if o.SatsPerUSD <= 0 {
		return 0, ErrNotConfigured
	}
	return ceilDiv(cents*o.SatsPerUSD, 100), nil
}

func (o FixedRateOracle) ConvertSatsToUSDCents(ctx context.Context, sats int64) (int64, error) {
	if sats < 0 {
		return 0, ErrNegativeValue
	}
	if o.SatsPerUSD <= 0 {
		return 0, ErrNotConfigured
	}
	return sats * 100 / o.SatsPerUSD, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

// CachedOracle memoizes conversions of an upstream oracle for a short TTL.
// Errors are never cached.
type CachedOracle struct {
	upstream Oracle
	cache    *expirable.LRU[string, int64]
}

func NewCachedOracle(upstream Oracle, size int, ttl time.Duration) *CachedOracle {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedOracle{
		upstream: upstream,
		cache:    expirable.NewLRU[string, int64](size, nil, ttl),
	}
}

func (o *CachedOracle) ConvertUSDCentsToSats(ctx context.Context, cents int64) (int64, error) {
	return o.lookup(fmt.Sprintf("usd:%d", cents), func() (int64, error) {
		return o.upstream.ConvertUSDCentsToSats(ctx, cents)
	})
}

func (o *CachedOracle) ConvertSatsToUSDCents(ctx context.Context, sats int64) (int64, error) {
	return o.lookup(fmt.Sprintf("sats:%d", sats), func() (int64, error) {
		return o.upstream.ConvertSatsToUSDCents(ctx, sats)
	})
}

func (o *CachedOracle) lookup(key string, load func() (int64, error)) (int64, error) {
	if v, ok := o.cache.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return 0, err
	}
	o.cache.Add(key, v)
	return v, nil
}
