package repository

import (
	"context"

	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, svc *catalogdomain.StreamingService) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE services
		 SET display_name = ?, monthly_cost_cents = ?, supported = ?, standalone = ?, updated_at = ?
		 WHERE id = ?`,
		svc.DisplayName,
		svc.MonthlyCostCents,
		svc.Supported,
		svc.Standalone,
		svc.UpdatedAt,
		svc.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO services (id, display_name, monthly_cost_cents, supported, standalone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		svc.ID,
		svc.DisplayName,
		svc.MonthlyCostCents,
		svc.Supported,
		svc.Standalone,
		svc.CreatedAt,
		svc.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*catalogdomain.StreamingService, error) {
	var svc catalogdomain.StreamingService
	err := db.WithContext(ctx).Raw(
		`SELECT id, display_name, monthly_cost_cents, supported, standalone, created_at, updated_at
		 FROM services WHERE id = ?`,
		id,
	).Scan(&svc).Error
	if err != nil {
		return nil, err
	}
	if svc.ID == "" {
		return nil, nil
	}
	return &svc, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, supportedOnly bool) ([]catalogdomain.StreamingService, error) {
	query := `SELECT id, display_name, monthly_cost_cents, supported, standalone, created_at, updated_at FROM services`
	if supportedOnly {
		query += ` WHERE supported = true`
	}
	query += ` ORDER BY display_name ASC`

	var items []catalogdomain.StreamingService
	if err := db.WithContext(ctx).Raw(query).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
