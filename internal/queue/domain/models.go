// Package domain models the per-user ordered rotation queue.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RotationQueueEntry is one service waiting for a slot. Positions of a user's
// entries are always exactly 1..N.
type RotationQueueEntry struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	UserID        snowflake.ID `gorm:"not null;uniqueIndex:ux_rotation_queue_user_service,priority:1;index:ix_rotation_queue_user_position,priority:1"`
	ServiceID     string       `gorm:"type:text;not null;uniqueIndex:ux_rotation_queue_user_service,priority:2"`
	Position      int          `gorm:"not null;index:ix_rotation_queue_user_position,priority:2"`
	ExtendCurrent bool         `gorm:"not null;default:false"`
	CreatedAt     time.Time    `gorm:"not null"`
	UpdatedAt     time.Time    `gorm:"not null"`
}

func (RotationQueueEntry) TableName() string { return "rotation_queue" }

// Head returns the lowest-position entry whose service is not in exclude.
// entries must be ordered by position.
func Head(entries []RotationQueueEntry, exclude ...string) *RotationQueueEntry {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	for i := range entries {
		if _, ok := skip[entries[i].ServiceID]; ok {
			continue
		}
		return &entries[i]
	}
	return nil
}

// FindService returns the entry for serviceID, or nil.
func FindService(entries []RotationQueueEntry, serviceID string) *RotationQueueEntry {
	for i := range entries {
		if entries[i].ServiceID == serviceID {
			return &entries[i]
		}
	}
	return nil
}
