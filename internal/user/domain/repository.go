package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	UpdateDebt(ctx context.Context, db *gorm.DB, id snowflake.ID, debtSats int64, updatedAt time.Time) error
	MarkOnboarded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
