package domain

import "errors"

var (
	// ErrSessionNotFound is returned by state stores when no snapshot exists
	// for the session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotReady is returned when an operation requires a Ready controller.
	ErrNotReady = errors.New("navigation controller not ready")

	// ErrDestroyed is returned when the engine has been destroyed.
	ErrDestroyed = errors.New("engine destroyed")
)
