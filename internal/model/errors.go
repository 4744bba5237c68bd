package model

import "errors"

// Common errors used across the application
var (
	// Store errors
	ErrConnectionNotFound = errors.New("connection not found")
	ErrPlayerNotFound     = errors.New("player not found")

	// Session errors
	ErrAlreadyStarted = errors.New("session already started")
	ErrHostNotAllowed = errors.New("play mode does not allow hosting")
	ErrInvalidAddress = errors.New("invalid address")
	ErrNotConnected   = errors.New("not connected")

	// Transport errors
	ErrConnectionClosed = errors.New("connection closed")
	ErrUnknownMessage   = errors.New("unknown message type")
)
