package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CreateJobRequest struct {
	UserID     snowflake.ID
	ServiceID  string
	Action     Action
	Trigger    Trigger
	AmountSats int64
	InvoiceID  *string
	Metadata   datatypes.JSON
}

type UpdateStatusOptions struct {
	FailureReason string
}

// Settlement is the outcome of settling a reneged job's debt.
type Settlement struct {
	Job           *Job
	AppliedSats   int64
	SurplusSats   int64
	RemainingDebt int64
}

type Service interface {
	Create(ctx context.Context, req CreateJobRequest) (*Job, error)
	Get(ctx context.Context, id snowflake.ID) (*Job, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status, opts UpdateStatusOptions) (*Job, error)
	SettleJobDebt(ctx context.Context, id snowflake.ID, paymentSats int64) (*Settlement, error)
}
