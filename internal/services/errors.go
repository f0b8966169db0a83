package services

import "errors"

// Service-level errors
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSyncInProgress    = errors.New("a sync is already running for this user")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidScope      = errors.New("migration scope requires a user id or all")
	ErrQueueFull         = errors.New("sync queue is full")
	ErrPropertyNotFound  = errors.New("property not found")
	ErrNoCredential      = errors.New("user has no stored credential")
)
