// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Price source errors.
	ErrPriceSource    = errors.New("price source request failed")
	ErrPriceRateLimit = errors.New("price source rate limit exceeded")
	ErrNoPriceData    = errors.New("no price data returned")

	// Import errors.
	ErrSchemaViolation = errors.New("record violates input schema")
	ErrNoTransactions  = errors.New("no transactions to process")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Check for specific retryable errors
	if errors.Is(err, ErrPriceRateLimit) ||
		errors.Is(err, ErrPriceSource) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
