package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
)

// ErrConflict reports a violated uniqueness rule, such as a second active
// assignment for the same seat or a reused booking reference.
var ErrConflict = errors.New("conflicting row")

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

// Store is the single authoritative seat and booking store. Every mutation goes
// through a Tx; the remaining methods are point-in-time reads and maintenance.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	GetSeat(ctx context.Context, flightID int64, seatNumber string) (*domain.Seat, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// ReleaseOrphanedSeats marks the named seats available when no active
	// assignment holds them. It is safe to repeat.
	ReleaseOrphanedSeats(ctx context.Context, flightID int64, seatNumbers []string) (int64, error)
	AuditFlight(ctx context.Context, flightID int64) (domain.InventoryAudit, error)
}

type Tx interface {
	// LockSeats returns the existing seats among seatNumbers and holds them
	// exclusively until the transaction ends.
	LockSeats(ctx context.Context, flightID int64, seatNumbers []string) ([]domain.Seat, error)
	MarkSeatsUnavailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error)
	MarkSeatsAvailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error)
	UpdateSeat(ctx context.Context, flightID int64, seatNumber string, patch domain.SeatPatch) (*domain.Seat, error)
	HasActiveAssignment(ctx context.Context, flightID int64, seatNumber string) (bool, error)

	ReferenceExists(ctx context.Context, reference string) (bool, error)
	InsertBooking(ctx context.Context, booking *domain.Booking) error
	InsertPassengers(ctx context.Context, bookingID uuid.UUID, passengers []domain.Passenger) error
	InsertSeatAssignments(ctx context.Context, assignments []domain.SeatAssignment) error
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, at time.Time) error
	DeactivateAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatAssignment, error)

	EnqueueOutbox(ctx context.Context, messages ...domain.OutboxMessage) error

	Commit() error
	Rollback() error
}

type OutboxRepository interface {
	// ClaimPending returns up to limit due pending messages, oldest first, and
	// hides them from other claimers for lease.
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	// MarkFailed records a failed attempt. The message is parked when final,
	// otherwise it is due again at retryAt.
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, retryAt time.Time, final bool) error
}
