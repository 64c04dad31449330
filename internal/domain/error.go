package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("operation failed")

	// Chat lifecycle errors
	ErrAccessDenied     = errors.New("not a participant of this chat")
	ErrChatNotActive    = errors.New("chat is not active")
	ErrOpenChatExists   = errors.New("user already has an open chat")
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrMessageTooLong   = errors.New("message text exceeds maximum length")
	ErrDuplicateMessage = errors.New("duplicate message")

	// Billing errors
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)
