package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *RotationQueueEntry) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]RotationQueueEntry, error)
	// ListByUserForUpdate locks every entry of the user.
	ListByUserForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]RotationQueueEntry, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	UpdatePosition(ctx context.Context, db *gorm.DB, id snowflake.ID, position int, updatedAt time.Time) error
	SetExtendCurrent(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string, extend bool, updatedAt time.Time) (bool, error)
}
