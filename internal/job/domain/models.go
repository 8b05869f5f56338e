// Package domain models the jobs that act on a user's streaming accounts and
// the status machine that governs them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionCancel Action = "cancel"
	ActionResume Action = "resume"
	ActionSignup Action = "signup"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCancel, ActionResume, ActionSignup:
		return true
	default:
		return false
	}
}

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerOnDemand  Trigger = "on_demand"
)

func (t Trigger) Valid() bool {
	return t == TriggerScheduled || t == TriggerOnDemand
}

type Status string

const (
	StatusPending     Status = "pending"
	StatusDispatched  Status = "dispatched"
	StatusActive      Status = "active"
	StatusAwaitingOTP Status = "awaiting_otp"
	StatusSnoozed     Status = "snoozed"

	StatusCompletedPaid     Status = "completed_paid"
	StatusCompletedEventual Status = "completed_eventual"
	StatusCompletedReneged  Status = "completed_reneged"
	StatusUserSkip          Status = "user_skip"
	StatusUserAbandon       Status = "user_abandon"
	StatusImpliedSkip       Status = "implied_skip"
	StatusFailed            Status = "failed"
)

// FailureCredentialInvalid is the failure reason that feeds the abuse guard.
const FailureCredentialInvalid = "credential_invalid"

var nonTerminalStatuses = []Status{
	StatusPending,
	StatusDispatched,
	StatusActive,
	StatusAwaitingOTP,
	StatusSnoozed,
}

// NonTerminalStatuses returns a fresh copy, safe to pass to IN queries.
func NonTerminalStatuses() []Status {
	out := make([]Status, len(nonTerminalStatuses))
	copy(out, nonTerminalStatuses)
	return out
}

type Job struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	UserID        snowflake.ID   `gorm:"not null;index:ix_jobs_user_service,priority:1"`
	ServiceID     string         `gorm:"type:text;not null;index:ix_jobs_user_service,priority:2"`
	Action        Action         `gorm:"type:text;not null"`
	Trigger       Trigger        `gorm:"column:trigger_type;type:text;not null"`
	Status        Status         `gorm:"type:text;not null;index"`
	AmountSats    int64          `gorm:"not null;default:0"`
	InvoiceID     *string        `gorm:"type:text"`
	FailureReason *string        `gorm:"type:text"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (Job) TableName() string { return "jobs" }
