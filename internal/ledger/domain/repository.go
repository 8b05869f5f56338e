package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tx *CreditTransaction) error
	SumByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]CreditTransaction, error)
	InsertDebtPayment(ctx context.Context, db *gorm.DB, payment *DebtPayment) error
	ListDebtPayments(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]DebtPayment, error)
}
