package models

import "errors"

// Common errors for control plane store operations.
var (
	// Session errors
	ErrSessionNotFound = errors.New("sync session not found")

	// Sync state errors
	ErrSyncStateNotFound = errors.New("sync state not found")

	// Setting errors
	ErrSettingNotFound = errors.New("setting not found")
)
