package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, slot *RotationSlot) error
	Find(ctx context.Context, db *gorm.DB, userID snowflake.ID, slotNumber int) (*RotationSlot, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID, slotNumber int) (*RotationSlot, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]RotationSlot, error)
	Update(ctx context.Context, db *gorm.DB, slot *RotationSlot) error
	UpdateNext(ctx context.Context, db *gorm.DB, id snowflake.ID, next *string, updatedAt time.Time) error
	// ListDue pages through slots a lock-in could act on, ordered by
	// (user_id, slot_number) and starting after the given key: empty slots,
	// and slots whose current subscription ends at or before dueBefore. Either
	// kind is listed only while the user has a queued service no slot holds,
	// or has asked to stay on the slot's current service.
	ListDue(ctx context.Context, db *gorm.DB, dueBefore time.Time, afterUserID snowflake.ID, afterSlot int, limit int) ([]RotationSlot, error)
}
