package auth

import "errors"

var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrTokenExpired    = errors.New("token has expired")
	ErrMissingIdentity = errors.New("token carries no user identity")
)
