package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	"github.com/smallbiznis/rotation/internal/providers/payment"
	"gorm.io/gorm"
)

type RecordRequest struct {
	UserID      snowflake.ID
	Type        TransactionType
	AmountSats  int64
	ReferenceID *string
	Description *string
}

type SettleRequest struct {
	UserID      snowflake.ID
	JobID       *snowflake.ID
	PaymentSats int64
	InvoiceID   *string
}

// SettlementResult reports how a payment was applied. Surplus is never
// credited to the balance.
type SettlementResult struct {
	PaymentID     snowflake.ID
	AppliedSats   int64
	SurplusSats   int64
	RemainingDebt int64
}

type DebtSummary struct {
	UserID      snowflake.ID
	DebtSats    int64
	RenegedJobs []jobdomain.Job
}

type Service interface {
	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
	// BalanceTx evaluates the balance inside the caller's transaction.
	BalanceTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error)
	// Record appends one row. A nil tx runs on the service's own handle.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) (*CreditTransaction, error)
	History(ctx context.Context, userID snowflake.ID, limit int) ([]CreditTransaction, error)

	// RecordDebt charges the job amount to the user's debt when the job moved
	// from a non-terminal status into completed_reneged. It reports whether
	// debt was charged.
	RecordDebt(ctx context.Context, tx *gorm.DB, job *jobdomain.Job, prior jobdomain.Status) (bool, error)
	SettleDebt(ctx context.Context, req SettleRequest) (*SettlementResult, error)
	SettleDebtTx(ctx context.Context, tx *gorm.DB, req SettleRequest) (*SettlementResult, error)
	DebtSummary(ctx context.Context, userID snowflake.ID) (*DebtSummary, error)
	// CreateDebtInvoice requests a Lightning invoice for the outstanding debt.
	CreateDebtInvoice(ctx context.Context, userID snowflake.ID) (*payment.Invoice, error)
}
