package domain

import "errors"

var (
	// Common domain errors
	ErrCatalogUnavailable = errors.New("service catalog unavailable")
	ErrServiceUnavailable = errors.New("service not available")
	ErrSessionNotFound    = errors.New("wizard session not found")
	ErrSessionTerminal    = errors.New("wizard session already finished")
	ErrSubmissionInFlight = errors.New("payment submission already in progress")
	ErrChargesFetch       = errors.New("outstanding charges lookup failed")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrRateLimited        = errors.New("too many session attempts")

	// Storage-level errors
	ErrOperationFailed = errors.New("storage operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
)
