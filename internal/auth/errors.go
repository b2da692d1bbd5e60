package auth

import "errors"

// Token errors. ErrTokenExpired also matches ErrTokenInvalid.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token has expired")
	ErrMissingUser  = errors.New("auth: user id is required")
)
