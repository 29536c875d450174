package domain

import "errors"

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account identity already in pool")
	ErrAccountInUse     = errors.New("account is bound to the active session")
	ErrPoolEmpty        = errors.New("no eligible accounts in pool")
	ErrSecretNotFound   = errors.New("secret not found")
)
