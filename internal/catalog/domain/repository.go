package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, svc *StreamingService) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*StreamingService, error)
	List(ctx context.Context, db *gorm.DB, supportedOnly bool) ([]StreamingService, error)
}
