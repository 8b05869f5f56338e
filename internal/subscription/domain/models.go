// Package domain tracks the streaming subscriptions a user holds or is about
// to hold.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive          Status = "active"
	StatusSignupScheduled Status = "signup_scheduled"
	StatusCancelScheduled Status = "cancel_scheduled"
	StatusLapsing         Status = "lapsing"
	StatusCancelled       Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSignupScheduled, StatusCancelScheduled, StatusLapsing, StatusCancelled:
		return true
	default:
		return false
	}
}

// Live reports whether the subscription is currently delivering the service.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusLapsing
}

type Subscription struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	UserID              snowflake.ID `gorm:"not null;uniqueIndex:ux_subscriptions_user_service,priority:1"`
	ServiceID           string       `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_user_service,priority:2"`
	Status              Status       `gorm:"type:text;not null"`
	SubscriptionEndDate *time.Time
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }
