package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/rotation/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, user_id, service_id, status, subscription_end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.UserID,
		sub.ServiceID,
		sub.Status,
		sub.SubscriptionEndDate,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByUserService(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*subscriptiondomain.Subscription, error) {
	return r.find(ctx, db, `SELECT id, user_id, service_id, status, subscription_end_date, created_at, updated_at
		FROM subscriptions WHERE user_id = ? AND service_id = ?`, userID, serviceID)
}

func (r *repo) FindByUserServiceForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*subscriptiondomain.Subscription, error) {
	return r.find(ctx, db, `SELECT id, user_id, service_id, status, subscription_end_date, created_at, updated_at
		FROM subscriptions WHERE user_id = ? AND service_id = ? FOR UPDATE`, userID, serviceID)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&sub).Error; err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, service_id, status, subscription_end_date, created_at, updated_at
		 FROM subscriptions
		 WHERE user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status subscriptiondomain.Status, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		updatedAt,
		id,
	).Error
}

func (r *repo) UpdateEndDate(ctx context.Context, db *gorm.DB, id snowflake.ID, endDate time.Time, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET subscription_end_date = ?, updated_at = ? WHERE id = ?`,
		endDate,
		updatedAt,
		id,
	).Error
}
