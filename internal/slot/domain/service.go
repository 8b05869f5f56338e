package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// EnsureSlots creates any missing slots up to the user's slot capacity.
	EnsureSlots(ctx context.Context, userID snowflake.ID) ([]RotationSlot, error)
	// RequestStay flags the current service to be extended at the next lock-in.
	RequestStay(ctx context.Context, userID snowflake.ID, serviceID string) error
	LockIn(ctx context.Context, userID snowflake.ID, slotNumber int) (*LockInResult, error)
	Describe(ctx context.Context, userID snowflake.ID) ([]SlotView, error)
	// RefreshNext recomputes the advisory next service of every slot.
	RefreshNext(ctx context.Context, userID snowflake.ID) ([]RotationSlot, error)
}
