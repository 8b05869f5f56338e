package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrJobNotFound       = apperror.New(apperror.KindNotFound, "job_not_found")
	ErrInvalidTransition = apperror.New(apperror.KindConflict, "invalid_status_transition")
	ErrJobNotReneged     = apperror.New(apperror.KindConflict, "job_not_reneged")
	ErrInvalidStatus     = apperror.New(apperror.KindInvalidInput, "invalid_status")
	ErrInvalidAction     = apperror.New(apperror.KindInvalidInput, "invalid_action")
	ErrInvalidTrigger    = apperror.New(apperror.KindInvalidInput, "invalid_trigger")
	ErrInvalidAmount     = apperror.New(apperror.KindInvalidInput, "invalid_amount")
	ErrInvalidUser       = apperror.New(apperror.KindInvalidInput, "invalid_user_id")
	ErrInvalidService    = apperror.New(apperror.KindInvalidInput, "invalid_service_id")
)
