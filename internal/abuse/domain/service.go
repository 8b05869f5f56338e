package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"gorm.io/gorm"
)

type Service interface {
	// RecordActionOutcome observes a finished job inside the caller's
	// transaction. Only credential_invalid changes state; no outcome ever
	// resets the failure counter. A raised alert is returned unsent when tx is
	// non-nil; pass it to NotifyAlert after the transaction commits.
	RecordActionOutcome(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string, outcome Outcome) (*OperatorAlert, error)
	// CheckAlertThreshold raises an operator alert when the counter is at or
	// above the threshold. Every call past the threshold raises a new alert.
	CheckAlertThreshold(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string) (*OperatorAlert, error)
	NotifyAlert(ctx context.Context, alert *OperatorAlert)

	RateLimit(ctx context.Context, userID snowflake.ID) error
	AbandonCooldown(ctx context.Context, userID snowflake.ID) error
	CredentialStrike(ctx context.Context, userID snowflake.ID, serviceID string) error
	GateSubmission(ctx context.Context, userID snowflake.ID, serviceID string, trigger jobdomain.Trigger) error

	FailureCount(ctx context.Context, userID snowflake.ID, serviceID string) (int, error)
	ResetCredentialFailures(ctx context.Context, principal userdomain.Principal, userID snowflake.ID, serviceID string) error
	ListAlerts(ctx context.Context, principal userdomain.Principal, filter AlertFilter) ([]OperatorAlert, error)
	AcknowledgeAlert(ctx context.Context, principal userdomain.Principal, alertID snowflake.ID) (*OperatorAlert, error)
}
