package domain

import "context"

type UpsertServiceRequest struct {
	ID               string
	DisplayName      string
	MonthlyCostCents int64
	Supported        bool
	Standalone       bool
}

type Service interface {
	Upsert(ctx context.Context, req UpsertServiceRequest) (*StreamingService, error)
	Get(ctx context.Context, id string) (*StreamingService, error)
	// GetSupported returns ErrServiceUnsupported for entries that exist but are disabled.
	GetSupported(ctx context.Context, id string) (*StreamingService, error)
	List(ctx context.Context) ([]StreamingService, error)
	// DisplayName never fails; unknown services fall back to their id.
	DisplayName(ctx context.Context, id string) string
}
