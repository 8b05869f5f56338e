package domain

import "github.com/smallbiznis/rotation/pkg/apperror"

var (
	ErrCredentialNotFound = apperror.New(apperror.KindNotFound, "credential_not_found")
	ErrInvalidCredential  = apperror.New(apperror.KindInvalidInput, "invalid_credential")
	ErrInvalidKey         = apperror.New(apperror.KindInvalidInput, "invalid_credential_key")
	ErrDecrypt            = apperror.New(apperror.KindConflict, "credential_decrypt_failed")
)
