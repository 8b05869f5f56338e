package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AlertFilter struct {
	UnacknowledgedOnly bool
	UserID             *snowflake.ID
	Limit              int
}

type Repository interface {
	FindFailure(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*CredentialFailureRecord, error)
	// IncrementFailure bumps the counter, creating the record if needed, and
	// returns the new value.
	IncrementFailure(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string, at time.Time) (int, error)
	DeleteFailure(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (bool, error)

	InsertAlert(ctx context.Context, db *gorm.DB, alert *OperatorAlert) error
	ListAlerts(ctx context.Context, db *gorm.DB, filter AlertFilter) ([]OperatorAlert, error)
	FindAlertForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OperatorAlert, error)
	AcknowledgeAlert(ctx context.Context, db *gorm.DB, id snowflake.ID, by snowflake.ID, at time.Time) error
}
