package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/rotation/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOracle struct {
	calls int
	err   error
}

func (o *countingOracle) ConvertUSDCentsToSats(ctx context.Context, cents int64) (int64, error) {
	o.calls++
	if o.err != nil {
		return 0, o.err
	}
	return cents * 10, nil
}

func (o *countingOracle) ConvertSatsToUSDCents(ctx context.Context, sats int64) (int64, error) {
	o.calls++
	if o.err != nil {
		return 0, o.err
	}
	return sats / 10, nil
}

func TestFixedRateOracleRoundsUp(t *testing.T) {
	o := FixedRateOracle{SatsPerUSD: 1_000}
	ctx := context.Background()

	sats, err := o.ConvertUSDCentsToSats(ctx, 2_500)
	require.NoError(t, err)
	assert.Equal(t, int64(25_000), sats)

	sats, err = o.ConvertUSDCentsToSats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sats)

	o = FixedRateOracle{SatsPerUSD: 3}
	sats, err = o.ConvertUSDCentsToSats(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sats)

	_, err = o.ConvertUSDCentsToSats(ctx, -1)
	assert.True(t, apperror.IsInvalidInput(err))
}

func TestCachedOracleMemoizes(t *testing.T) {
	upstream := &countingOracle{}
	o := NewCachedOracle(upstream, 8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sats, err := o.ConvertUSDCentsToSats(ctx, 1_599)
		require.NoError(t, err)
		assert.Equal(t, int64(15_990), sats)
	}
	assert.Equal(t, 1, upstream.calls)

	_, err := o.ConvertSatsToUSDCents(ctx, 15_990)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedOracleDoesNotCacheErrors(t *testing.T) {
	upstream := &countingOracle{err: errors.New("upstream down")}
	o := NewCachedOracle(upstream, 8, time.Minute)
	ctx := context.Background()

	_, err := o.ConvertUSDCentsToSats(ctx, 100)
	assert.Error(t, err)
	_, err = o.ConvertUSDCentsToSats(ctx, 100)
	assert.Error(t, err)
	assert.Equal(t, 2, upstream.calls)
}

func TestUnconfiguredOracleIsProviderError(t *testing.T) {
	_, err := Unconfigured{}.ConvertUSDCentsToSats(context.Background(), 100)
	assert.True(t, apperror.IsProviderError(err))
}

func TestStaticFee(t *testing.T) {
	fee, err := StaticFee(4_400).PlatformFeeSats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4_400), fee)
}
