package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	"gorm.io/gorm"
)

const jobColumns = `id, user_id, service_id, action, trigger_type, status, amount_sats, invoice_id,
	failure_reason, metadata, created_at, updated_at`

type repo struct{}

func Provide() jobdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *jobdomain.Job) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.UserID,
		job.ServiceID,
		job.Action,
		job.Trigger,
		job.Status,
		job.AmountSats,
		job.InvoiceID,
		job.FailureReason,
		job.Metadata,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*jobdomain.Job, error) {
	return r.find(ctx, db, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*jobdomain.Job, error) {
	return r.find(ctx, db, `SELECT `+jobColumns+` FROM jobs WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*jobdomain.Job, error) {
	var job jobdomain.Job
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, status jobdomain.Status, failureReason *string, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = ?, failure_reason = COALESCE(?, failure_reason), updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		failureReason,
		updatedAt,
		id,
		expected,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CountNonTerminal(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM jobs WHERE user_id = ? AND service_id = ? AND status IN ?`,
		userID,
		serviceID,
		jobdomain.NonTerminalStatuses(),
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountByTriggerSince(ctx context.Context, db *gorm.DB, userID snowflake.ID, trigger jobdomain.Trigger, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM jobs WHERE user_id = ? AND trigger_type = ? AND created_at > ?`,
		userID,
		trigger,
		since,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListRecentTerminal(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]jobdomain.Job, error) {
	var jobs []jobdomain.Job
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = ? AND status NOT IN ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`,
		userID,
		jobdomain.NonTerminalStatuses(),
		limit,
	).Scan(&jobs).Error
	return jobs, err
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status jobdomain.Status) ([]jobdomain.Job, error) {
	var jobs []jobdomain.Job
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = ? AND status = ?
		 ORDER BY updated_at DESC, id DESC`,
		userID,
		status,
	).Scan(&jobs).Error
	return jobs, err
}
