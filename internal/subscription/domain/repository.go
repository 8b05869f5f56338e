package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByUserService(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*Subscription, error)
	FindByUserServiceForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*Subscription, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, updatedAt time.Time) error
	UpdateEndDate(ctx context.Context, db *gorm.DB, id snowflake.ID, endDate time.Time, updatedAt time.Time) error
}
