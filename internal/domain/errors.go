package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details. The callback path additionally collapses
// ErrTokenExchange/ErrUserInfo/ErrNotFound into a generic failure so callers
// cannot distinguish "not on roster" from "provider rejected".
var (
	ErrNotFound         = errors.New("not found")
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCacheUnavailable = errors.New("roster cache unavailable")
	ErrAlreadyResolved  = errors.New("attempt already resolved")
	ErrExpired          = errors.New("attempt expired")
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrUserInfo         = errors.New("userinfo request failed")
)
