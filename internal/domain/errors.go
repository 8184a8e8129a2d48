package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidAccount    = errors.New("invalid account address")
	ErrInvalidAddress    = errors.New("invalid contract address")
	ErrUnsupportedSchema = errors.New("unsupported schema version")
	ErrUpstream          = errors.New("upstream request failed")
	ErrLockHeld          = errors.New("lock already held")
)
