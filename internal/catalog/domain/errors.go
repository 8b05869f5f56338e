package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrServiceNotFound    = apperror.New(apperror.KindNotFound, "service_not_found")
	ErrServiceUnsupported = apperror.New(apperror.KindNotFound, "service_unsupported")
	ErrInvalidServiceID   = apperror.New(apperror.KindInvalidInput, "invalid_service_id")
	ErrInvalidMonthlyCost = apperror.New(apperror.KindInvalidInput, "invalid_monthly_cost")
)
