package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Get(ctx context.Context, userID snowflake.ID, serviceID string) (*Subscription, error)
	List(ctx context.Context, userID snowflake.ID) ([]Subscription, error)
	// Schedule upserts the (user, service) subscription with the given status
	// inside the caller's transaction.
	Schedule(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string, status Status) (*Subscription, error)
	SetStatus(ctx context.Context, userID snowflake.ID, serviceID string, status Status) (*Subscription, error)
}
