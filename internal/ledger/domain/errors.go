package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrInvalidTransactionType = apperror.New(apperror.KindInvalidInput, "invalid_transaction_type")
	ErrInvalidAmountSign      = apperror.New(apperror.KindInvalidInput, "invalid_amount_sign")
	ErrInvalidUser            = apperror.New(apperror.KindInvalidInput, "invalid_user_id")
	ErrInvalidPayment         = apperror.New(apperror.KindInvalidInput, "invalid_payment_amount")
	ErrUserNotFound           = apperror.New(apperror.KindNotFound, "user_not_found")
	ErrNoDebt                 = apperror.New(apperror.KindConflict, "no_outstanding_debt")
)
