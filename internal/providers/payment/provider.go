// Package payment is the port to the Lightning invoice provider.
package payment

import (
	"context"
	"time"

	"github.com/smallbiznis/rotation/pkg/apperror"
)

type Invoice struct {
	ID             string
	AmountSats     int64
	PaymentRequest string
	Memo           string
	ExpiresAt      time.Time
}

type CreateInvoiceRequest struct {
	AmountSats int64
	Memo       string
	// Reference ties the invoice back to a user or job.
	Reference string
}

type Payment struct {
	PaymentHash string
	AmountSats  int64
	FeeSats     int64
}

type Provider interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	PayInvoice(ctx context.Context, paymentRequest string) (*Payment, error)
}

var ErrNotConfigured = apperror.New(apperror.KindProviderError, "payment_provider_not_configured")

// Unconfigured is the default provider; every call fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) PayInvoice(ctx context.Context, paymentRequest string) (*Payment, error) {
	return nil, ErrNotConfigured
}
