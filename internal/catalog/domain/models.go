// Package domain holds the catalog of streaming services that can be rotated.
package domain

import "time"

// StreamingService is a catalog entry. ID is a stable slug such as "netflix".
type StreamingService struct {
	ID               string    `gorm:"primaryKey;type:text"`
	DisplayName      string    `gorm:"type:text;not null"`
	MonthlyCostCents int64     `gorm:"not null;default:0"`
	Supported        bool      `gorm:"not null;default:true"`
	Standalone       bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (StreamingService) TableName() string { return "services" }
