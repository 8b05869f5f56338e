package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tx *ledgerdomain.CreditTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (id, user_id, type, amount_sats, reference_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.AmountSats,
		tx.ReferenceID,
		tx.Description,
		tx.CreatedAt,
	).Error
}

func (r *repo) SumByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var sum int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_sats), 0) FROM credit_transactions WHERE user_id = ?`,
		userID,
	).Scan(&sum).Error
	return sum, err
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]ledgerdomain.CreditTransaction, error) {
	var items []ledgerdomain.CreditTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, amount_sats, reference_id, description, created_at
		 FROM credit_transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) InsertDebtPayment(ctx context.Context, db *gorm.DB, payment *ledgerdomain.DebtPayment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO debt_payments (id, user_id, job_id, amount_sats, applied_sats, surplus_sats, invoice_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.UserID,
		payment.JobID,
		payment.AmountSats,
		payment.AppliedSats,
		payment.SurplusSats,
		payment.InvoiceID,
		payment.CreatedAt,
	).Error
}

func (r *repo) ListDebtPayments(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]ledgerdomain.DebtPayment, error) {
	var items []ledgerdomain.DebtPayment
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, job_id, amount_sats, applied_sats, surplus_sats, invoice_id, created_at
		 FROM debt_payments
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&items).Error
	return items, err
}
