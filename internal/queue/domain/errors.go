package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrEntryNotFound  = apperror.New(apperror.KindNotFound, "queue_entry_not_found")
	ErrAlreadyQueued  = apperror.New(apperror.KindConflict, "service_already_queued")
	ErrActiveJob      = apperror.New(apperror.KindConflict, "active_job_blocking_removal")
	ErrInvalidUser    = apperror.New(apperror.KindInvalidInput, "invalid_user_id")
	ErrInvalidService = apperror.New(apperror.KindInvalidInput, "invalid_service_id")
	ErrInvalidReorder = apperror.New(apperror.KindInvalidInput, "invalid_queue_order")
)
