package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrSlotNotFound         = apperror.New(apperror.KindNotFound, "slot_not_found")
	ErrSubscriptionNotLive  = apperror.New(apperror.KindNotFound, "subscription_not_live")
	ErrQueueEntryNotFound   = apperror.New(apperror.KindNotFound, "queue_entry_not_found")
	ErrInsufficientFunds    = apperror.New(apperror.KindInsufficientFunds, "insufficient_funds")
	ErrInvalidSlotNumber    = apperror.New(apperror.KindInvalidInput, "invalid_slot_number")
	ErrSlotCapacityExceeded = apperror.New(apperror.KindInvalidInput, "slot_capacity_exceeded")
	ErrUserNotFound         = apperror.New(apperror.KindNotFound, "user_not_found")
)
