package core

import "errors"

// Core errors that can occur across the bot
var (
	// Directory errors
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// Storage errors
	ErrRecordNotFound = errors.New("record not found")

	// Messaging errors
	ErrNoTemplates         = errors.New("no message templates configured")
	ErrUnsupportedProtocol = errors.New("messaging protocol not supported")

	// Validation errors
	ErrInvalidDate = errors.New("invalid date")
)
