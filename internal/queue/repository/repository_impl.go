package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	"gorm.io/gorm"
)

const entryColumns = `id, user_id, service_id, position, extend_current, created_at, updated_at`

type repo struct{}

func Provide() queuedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *queuedomain.RotationQueueEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rotation_queue (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.ServiceID,
		entry.Position,
		entry.ExtendCurrent,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]queuedomain.RotationQueueEntry, error) {
	var entries []queuedomain.RotationQueueEntry
	err := db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM rotation_queue WHERE user_id = ? ORDER BY position ASC, id ASC`,
		userID,
	).Scan(&entries).Error
	return entries, err
}

func (r *repo) ListByUserForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]queuedomain.RotationQueueEntry, error) {
	var entries []queuedomain.RotationQueueEntry
	err := db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM rotation_queue WHERE user_id = ? ORDER BY position ASC, id ASC FOR UPDATE`,
		userID,
	).Scan(&entries).Error
	return entries, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM rotation_queue WHERE id = ?`, id).Error
}

func (r *repo) UpdatePosition(ctx context.Context, db *gorm.DB, id snowflake.ID, position int, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE rotation_queue SET position = ?, updated_at = ? WHERE id = ?`,
		position,
		updatedAt,
		id,
	).Error
}

func (r *repo) SetExtendCurrent(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string, extend bool, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE rotation_queue SET extend_current = ?, updated_at = ? WHERE user_id = ? AND service_id = ?`,
		extend,
		updatedAt,
		userID,
		serviceID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
