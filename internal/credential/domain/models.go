// Package domain holds per-service streaming account credentials. Secrets are
// stored sealed and only opened on demand.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type StreamingCredential struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	UserID      snowflake.ID `gorm:"not null;uniqueIndex:ux_streaming_credentials_user_service,priority:1"`
	ServiceID   string       `gorm:"type:text;not null;uniqueIndex:ux_streaming_credentials_user_service,priority:2"`
	EmailEnc    []byte       `gorm:"not null"`
	PasswordEnc []byte       `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

func (StreamingCredential) TableName() string { return "streaming_credentials" }

// Credentials is the opened form, never persisted.
type Credentials struct {
	Email    string
	Password string
}
