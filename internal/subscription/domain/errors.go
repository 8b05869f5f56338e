package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrSubscriptionNotFound = apperror.New(apperror.KindNotFound, "subscription_not_found")
	ErrInvalidStatus        = apperror.New(apperror.KindInvalidInput, "invalid_subscription_status")
)
