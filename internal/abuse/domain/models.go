// Package domain holds the credential failure counters and operator alerts
// used to throttle abusive or broken accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outcome is what a finished job tells the guard.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeCredentialInvalid Outcome = "credential_invalid"
	OutcomeUserAbandon       Outcome = "user_abandon"
	OutcomeSkipped           Outcome = "skipped"
	OutcomeFailed            Outcome = "failed"
)

const AlertTypeCredentialFailures = "credential_failures"

type CredentialFailureRecord struct {
	UserID             snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	ServiceID          string       `gorm:"primaryKey;type:text"`
	CredentialFailures int          `gorm:"not null;default:0"`
	LastFailureAt      *time.Time
	UpdatedAt          time.Time `gorm:"not null"`
}

func (CredentialFailureRecord) TableName() string { return "credential_failures" }

type OperatorAlert struct {
	ID             snowflake.ID   `gorm:"primaryKey"`
	AlertType      string         `gorm:"type:text;not null;index"`
	UserID         *snowflake.ID  `gorm:"index"`
	ServiceID      *string        `gorm:"type:text"`
	Message        string         `gorm:"type:text;not null"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	AcknowledgedAt *time.Time
	AcknowledgedBy *snowflake.ID
	CreatedAt      time.Time `gorm:"not null"`
}

func (OperatorAlert) TableName() string { return "operator_alerts" }
