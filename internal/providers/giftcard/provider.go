// Package giftcard is the port to the gift card fulfillment provider.
package giftcard

import (
	"context"

	"github.com/smallbiznis/rotation/pkg/apperror"
)

type PurchaseRequest struct {
	// IdempotencyKey lets the provider deduplicate retried purchases.
	IdempotencyKey string
	ServiceID      string
	AmountCents    int64
	AmountSats     int64
}

type Purchase struct {
	OrderID     string
	ServiceID   string
	AmountCents int64
	AmountSats  int64
}

type Provider interface {
	PurchaseGiftCard(ctx context.Context, req PurchaseRequest) (*Purchase, error)
	// FetchGiftCardCode returns ErrPending until the order is fulfilled.
	FetchGiftCardCode(ctx context.Context, orderID string) (string, error)
}

var (
	ErrPending       = apperror.New(apperror.KindProviderError, "gift_card_pending")
	ErrNotConfigured = apperror.New(apperror.KindProviderError, "gift_card_provider_not_configured")
)

type Unconfigured struct{}

func (Unconfigured) PurchaseGiftCard(ctx context.Context, req PurchaseRequest) (*Purchase, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) FetchGiftCardCode(ctx context.Context, orderID string) (string, error) {
	return "", ErrNotConfigured
}
