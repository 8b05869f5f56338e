package pricing

import "context"

// FeeSource supplies the platform fee charged on every gift card purchase.
type FeeSource interface {
	PlatformFeeSats(ctx context.Context) (int64, error)
}

type StaticFee int64

func (f StaticFee) PlatformFeeSats(ctx context.Context) (int64, error) {
	return int64(f), nil
}
