package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, debt_sats, slot_capacity, role, onboarded_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DebtSats,
		user.SlotCapacity,
		user.Role,
		user.OnboardedAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	return r.find(ctx, db, `SELECT id, email, debt_sats, slot_capacity, role, onboarded_at, created_at, updated_at
		FROM users WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	return r.find(ctx, db, `SELECT id, email, debt_sats, slot_capacity, role, onboarded_at, created_at, updated_at
		FROM users WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*userdomain.User, error) {
	var user userdomain.User
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateDebt(ctx context.Context, db *gorm.DB, id snowflake.ID, debtSats int64, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET debt_sats = ?, updated_at = ? WHERE id = ?`,
		debtSats,
		updatedAt,
		id,
	).Error
}

func (r *repo) MarkOnboarded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET onboarded_at = COALESCE(onboarded_at, ?), updated_at = ? WHERE id = ?`,
		at,
		at,
		id,
	).Error
}
