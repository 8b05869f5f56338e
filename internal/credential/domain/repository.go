package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, cred *StreamingCredential) error
	Find(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*StreamingCredential, error)
	DeleteByUserService(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) error
}
