// Package repository defines the interfaces for the remote store consumed by the mirror.
package repository

import "github.com/pkg/errors"

// Domain-specific errors for remote persistence.
var (
	// ErrNotFound is returned when the addressed row does not exist (any more).
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("record already exists")
	// ErrGoingLimitReached is returned when the remote store refuses a fourth going intention.
	ErrGoingLimitReached = errors.New("going intention limit reached")
	// ErrPromotionNotActive is returned by the claim procedure for promotions outside their date range.
	ErrPromotionNotActive = errors.New("promotion not active")
)
