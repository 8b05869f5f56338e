package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	abusedomain "github.com/smallbiznis/rotation/internal/abuse/domain"
	"gorm.io/gorm"
)

const (
	failureColumns = `user_id, service_id, credential_failures, last_failure_at, updated_at`
	alertColumns   = `id, alert_type, user_id, service_id, message, metadata, acknowledged_at, acknowledged_by, created_at`

	defaultAlertLimit = 100
)

type repo struct{}

func Provide() abusedomain.Repository {
	return &repo{}
}

func (r *repo) FindFailure(ctx context.Context, conn *gorm.DB, userID snowflake.ID, serviceID string) (*abusedomain.CredentialFailureRecord, error) {
	var rec abusedomain.CredentialFailureRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT `+failureColumns+` FROM credential_failures WHERE user_id = ? AND service_id = ?`,
		userID,
		serviceID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.UserID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) IncrementFailure(ctx context.Context, conn *gorm.DB, userID snowflake.ID, serviceID string, at time.Time) (int, error) {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO credential_failures (`+failureColumns+`) VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (user_id, service_id)
		DO UPDATE SET credential_failures = credential_failures.credential_failures + 1,
			last_failure_at = EXCLUDED.last_failure_at,
			updated_at = EXCLUDED.updated_at`,
		userID,
		serviceID,
		at,
		at,
	).Error
	if err != nil {
		return 0, err
	}

	rec, err := r.FindFailure(ctx, conn, userID, serviceID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.CredentialFailures, nil
}

func (r *repo) DeleteFailure(ctx context.Context, conn *gorm.DB, userID snowflake.ID, serviceID string) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`DELETE FROM credential_failures WHERE user_id = ? AND service_id = ?`,
		userID,
		serviceID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertAlert(ctx context.Context, conn *gorm.DB, alert *abusedomain.OperatorAlert) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO operator_alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.AlertType,
		alert.UserID,
		alert.ServiceID,
		alert.Message,
		alert.Metadata,
		alert.AcknowledgedAt,
		alert.AcknowledgedBy,
		alert.CreatedAt,
	).Error
}

func (r *repo) ListAlerts(ctx context.Context, conn *gorm.DB, filter abusedomain.AlertFilter) ([]abusedomain.OperatorAlert, error) {
	var (
		where []string
		args  []any
	)
	if filter.UnacknowledgedOnly {
		where = append(where, "acknowledged_at IS NULL")
	}
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}

	query := `SELECT ` + alertColumns + ` FROM operator_alerts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var alerts []abusedomain.OperatorAlert
	err := conn.WithContext(ctx).Raw(query, args...).Scan(&alerts).Error
	return alerts, err
}

func (r *repo) FindAlertForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*abusedomain.OperatorAlert, error) {
	var alert abusedomain.OperatorAlert
	err := conn.WithContext(ctx).Raw(
		`SELECT `+alertColumns+` FROM operator_alerts WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&alert).Error
	if err != nil {
		return nil, err
	}
	if alert.ID == 0 {
		return nil, nil
	}
	return &alert, nil
}

func (r *repo) AcknowledgeAlert(ctx context.Context, conn *gorm.DB, id snowflake.ID, by snowflake.ID, at time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE operator_alerts SET acknowledged_at = ?, acknowledged_by = ? WHERE id = ? AND acknowledged_at IS NULL`,
		at,
		by,
		id,
	).Error
}
