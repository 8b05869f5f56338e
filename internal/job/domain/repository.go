package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	// UpdateStatus writes the new status only if the row still holds expected.
	// It reports whether a row was changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, status Status, failureReason *string, updatedAt time.Time) (bool, error)
	CountNonTerminal(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (int64, error)
	CountByTriggerSince(ctx context.Context, db *gorm.DB, userID snowflake.ID, trigger Trigger, since time.Time) (int64, error)
	ListRecentTerminal(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Job, error)
	ListByStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status Status) ([]Job, error)
}
