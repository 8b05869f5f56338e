package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Enqueue(ctx context.Context, userID snowflake.ID, serviceID string) (*RotationQueueEntry, error)
	Dequeue(ctx context.Context, userID snowflake.ID, serviceID string) error
	// DequeueTx runs Dequeue inside the caller's transaction.
	DequeueTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string) error
	List(ctx context.Context, userID snowflake.ID) ([]RotationQueueEntry, error)
	// Head returns the first entry not in exclude, or nil. A nil db reads
	// outside any transaction.
	Head(ctx context.Context, db *gorm.DB, userID snowflake.ID, exclude ...string) (*RotationQueueEntry, error)
	// Reorder rewrites positions to follow serviceIDs, which must be a
	// permutation of the queued services.
	Reorder(ctx context.Context, userID snowflake.ID, serviceIDs []string) ([]RotationQueueEntry, error)
}
