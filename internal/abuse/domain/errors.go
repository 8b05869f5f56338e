package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrOnDemandRateLimited = apperror.New(apperror.KindRateLimited, "on_demand_rate_limited")
	ErrAbandonCooldown     = apperror.New(apperror.KindRateLimited, "abandon_cooldown")
	ErrCredentialStrike    = apperror.New(apperror.KindRateLimited, "credential_strike")
	ErrAlertNotFound       = apperror.New(apperror.KindNotFound, "alert_not_found")
	ErrInvalidOutcome      = apperror.New(apperror.KindInvalidInput, "invalid_outcome")
	ErrInvalidTarget       = apperror.New(apperror.KindInvalidInput, "invalid_user_or_service")
)
