package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	credentialdomain "github.com/smallbiznis/rotation/internal/credential/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() credentialdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cred *credentialdomain.StreamingCredential) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE streaming_credentials
		 SET email_enc = ?, password_enc = ?, updated_at = ?
		 WHERE user_id = ? AND service_id = ?`,
		cred.EmailEnc,
		cred.PasswordEnc,
		cred.UpdatedAt,
		cred.UserID,
		cred.ServiceID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO streaming_credentials (id, user_id, service_id, email_enc, password_enc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cred.ID,
		cred.UserID,
		cred.ServiceID,
		cred.EmailEnc,
		cred.PasswordEnc,
		cred.CreatedAt,
		cred.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) (*credentialdomain.StreamingCredential, error) {
	var cred credentialdomain.StreamingCredential
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, service_id, email_enc, password_enc, created_at, updated_at
		 FROM streaming_credentials
		 WHERE user_id = ? AND service_id = ?`,
		userID,
		serviceID,
	).Scan(&cred).Error
	if err != nil {
		return nil, err
	}
	if cred.ID == 0 {
		return nil, nil
	}
	return &cred, nil
}

func (r *repo) DeleteByUserService(ctx context.Context, db *gorm.DB, userID snowflake.ID, serviceID string) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM streaming_credentials WHERE user_id = ? AND service_id = ?`,
		userID,
		serviceID,
	).Error
}
