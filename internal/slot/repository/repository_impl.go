package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	slotdomain "github.com/smallbiznis/rotation/internal/slot/domain"
	"gorm.io/gorm"
)

const slotColumns = `id, user_id, slot_number, current_service_id, next_service_id, locked_at, created_at, updated_at`

type repo struct{}

func Provide() slotdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, slot *slotdomain.RotationSlot) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rotation_slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		slot.ID,
		slot.UserID,
		slot.SlotNumber,
		slot.CurrentServiceID,
		slot.NextServiceID,
		slot.LockedAt,
		slot.CreatedAt,
		slot.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID snowflake.ID, slotNumber int) (*slotdomain.RotationSlot, error) {
	return r.find(ctx, db, `SELECT `+slotColumns+` FROM rotation_slots WHERE user_id = ? AND slot_number = ?`, userID, slotNumber)
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID, slotNumber int) (*slotdomain.RotationSlot, error) {
	return r.find(ctx, db, `SELECT `+slotColumns+` FROM rotation_slots WHERE user_id = ? AND slot_number = ? FOR UPDATE`, userID, slotNumber)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*slotdomain.RotationSlot, error) {
	var slot slotdomain.RotationSlot
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&slot).Error; err != nil {
		return nil, err
	}
	if slot.ID == 0 {
		return nil, nil
	}
	return &slot, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]slotdomain.RotationSlot, error) {
	var slots []slotdomain.RotationSlot
	err := db.WithContext(ctx).Raw(
		`SELECT `+slotColumns+` FROM rotation_slots WHERE user_id = ? ORDER BY slot_number ASC`,
		userID,
	).Scan(&slots).Error
	return slots, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, slot *slotdomain.RotationSlot) error {
	return db.WithContext(ctx).Exec(
		`UPDATE rotation_slots
		 SET current_service_id = ?, next_service_id = ?, locked_at = ?, updated_at = ?
		 WHERE id = ?`,
		slot.CurrentServiceID,
		slot.NextServiceID,
		slot.LockedAt,
		slot.UpdatedAt,
		slot.ID,
	).Error
}

func (r *repo) UpdateNext(ctx context.Context, db *gorm.DB, id snowflake.ID, next *string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE rotation_slots SET next_service_id = ?, updated_at = ? WHERE id = ?`,
		next,
		updatedAt,
		id,
	).Error
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, dueBefore time.Time, afterUserID snowflake.ID, afterSlot int, limit int) ([]slotdomain.RotationSlot, error) {
	var slots []slotdomain.RotationSlot
	err := db.WithContext(ctx).Raw(
		`SELECT s.id, s.user_id, s.slot_number, s.current_service_id, s.next_service_id, s.locked_at, s.created_at, s.updated_at
		 FROM rotation_slots s
		 LEFT JOIN subscriptions sub
		   ON sub.user_id = s.user_id AND sub.service_id = s.current_service_id
		 WHERE (s.user_id > ? OR (s.user_id = ? AND s.slot_number > ?))
		   AND (s.current_service_id IS NULL
		        OR (sub.subscription_end_date IS NOT NULL AND sub.subscription_end_date <= ?))
		   AND EXISTS (
		     SELECT 1 FROM rotation_queue q
		     WHERE q.user_id = s.user_id
		       AND ((q.extend_current = true AND q.service_id = s.current_service_id)
		            OR NOT EXISTS (
		              SELECT 1 FROM rotation_slots o
		              WHERE o.user_id = q.user_id AND o.current_service_id = q.service_id)))
		 ORDER BY s.user_id ASC, s.slot_number ASC
		 LIMIT ?`,
		afterUserID,
		afterUserID,
		afterSlot,
		dueBefore,
		limit,
	).Scan(&slots).Error
	return slots, err
}
