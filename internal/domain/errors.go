package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidPayment   = errors.New("invalid payment details")
	ErrSeatUnavailable  = errors.New("seat unavailable")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrInvalidState     = errors.New("invalid booking state")
	ErrPersistence      = errors.New("persistence failure")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type SeatProblemReason string

const (
	SeatMissing    SeatProblemReason = "not_found"
	SeatTaken      SeatProblemReason = "unavailable"
	SeatWrongClass SeatProblemReason = "wrong_class"
)

type SeatProblem struct {
	SeatNumber string            `json:"seat_number"`
	Reason     SeatProblemReason `json:"reason"`
}

// SeatUnavailableError lists every requested seat that failed a reservation precondition.
type SeatUnavailableError struct {
	FlightID int64
	Problems []SeatProblem
}

func (e *SeatUnavailableError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s (%s)", p.SeatNumber, p.Reason))
	}
	return fmt.Sprintf("seats unavailable on flight %d: %s", e.FlightID, strings.Join(parts, ", "))
}

func (e *SeatUnavailableError) Is(target error) bool { return target == ErrSeatUnavailable }
