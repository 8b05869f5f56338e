package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrUserNotFound        = apperror.New(apperror.KindNotFound, "user_not_found")
	ErrEmailTaken          = apperror.New(apperror.KindConflict, "email_taken")
	ErrInvalidEmail        = apperror.New(apperror.KindInvalidInput, "invalid_email")
	ErrInvalidRole         = apperror.New(apperror.KindInvalidInput, "invalid_role")
	ErrInvalidSlotCapacity = apperror.New(apperror.KindInvalidInput, "invalid_slot_capacity")
	ErrNegativeDebt        = apperror.New(apperror.KindInvalidInput, "negative_debt")
)
