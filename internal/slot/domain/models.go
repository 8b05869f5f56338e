// Package domain models the funded slots that hold a user's active
// subscription and the lock-in decision taken for each of them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type RotationSlot struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"not null;uniqueIndex:ux_rotation_slots_user_slot,priority:1"`
	SlotNumber       int          `gorm:"not null;uniqueIndex:ux_rotation_slots_user_slot,priority:2"`
	CurrentServiceID *string      `gorm:"type:text"`
	NextServiceID    *string      `gorm:"type:text"`
	LockedAt         *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (RotationSlot) TableName() string { return "rotation_slots" }

func (s *RotationSlot) Current() string {
	if s == nil || s.CurrentServiceID == nil {
		return ""
	}
	return *s.CurrentServiceID
}

func (s *RotationSlot) Next() string {
	if s == nil || s.NextServiceID == nil {
		return ""
	}
	return *s.NextServiceID
}

// OccupiedServices lists the services currently held by any of the slots.
func OccupiedServices(slots []RotationSlot) []string {
	out := make([]string, 0, len(slots))
	for i := range slots {
		if id := slots[i].Current(); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// State is the derived lifecycle position of a slot.
type State string

const (
	StateEmpty           State = "empty"
	StateFunding         State = "funding"
	StateLocked          State = "locked"
	StateExtendRequested State = "extend_requested"
	StateAdvancePending  State = "advance_pending"
)

type SlotView struct {
	Slot          RotationSlot
	State         State
	ShortfallSats int64
}

// Outcome is the decision LockIn took.
type Outcome string

const (
	OutcomeExtended Outcome = "extended"
	OutcomeAdvanced Outcome = "advanced"
	OutcomeDeferred Outcome = "deferred"
	OutcomeIdle     Outcome = "idle"
)

type LockInResult struct {
	Outcome         Outcome
	Slot            RotationSlot
	ServiceID       string
	RetiredService  string
	ChargedSats     int64
	ShortfallSats   int64
	GiftCardOrderID string
}
