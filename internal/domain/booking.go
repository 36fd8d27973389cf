package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	UserID           string        `json:"user_id" db:"user_id"`
	FlightID         int64         `json:"flight_id" db:"flight_id"`
	Status           BookingStatus `json:"status" db:"status"`
	TotalAmountCents int64         `json:"total_amount_cents" db:"total_amount_cents"`
	Passengers       []Passenger   `json:"passengers" db:"-"`
	SeatNumbers      []string      `json:"seat_numbers" db:"-"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

type Passenger struct {
	ID             uuid.UUID `json:"id" db:"id"`
	BookingID      uuid.UUID `json:"booking_id" db:"booking_id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email,omitempty" db:"email"`
	DocumentNumber string    `json:"document_number,omitempty" db:"document_number"`
	DateOfBirth    string    `json:"date_of_birth,omitempty" db:"date_of_birth"`
	SeatNumber     string    `json:"seat_number" db:"seat_number"`
	// The fare fields record the price of the seat when it was booked.
	SeatClass     SeatClass `json:"seat_class,omitempty" db:"seat_class"`
	FareCents     int64     `json:"fare_cents" db:"fare_cents"`
	ModifierCents int64     `json:"modifier_cents" db:"modifier_cents"`
}

// AmountCents is what the passenger's seat cost at booking time.
func (p Passenger) AmountCents() int64 {
	return p.FareCents + p.ModifierCents
}

// SeatAssignment is the record that a seat is sold. At most one active assignment
// may exist per (FlightID, SeatNumber).
type SeatAssignment struct {
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	FlightID   int64     `json:"flight_id" db:"flight_id"`
	SeatNumber string    `json:"seat_number" db:"seat_number"`
	Active     bool      `json:"active" db:"active"`
}

// OwnedBy reports whether userID may act on the booking. Admins may act on any booking.
func (b *Booking) OwnedBy(userID string, admin bool) bool {
	return admin || (userID != "" && b.UserID == userID)
}

// RequireActive guards operations that imply the booking still holds its seats.
func (b *Booking) RequireActive() error {
	if b.Status != BookingStatusConfirmed {
		return ErrInvalidState
	}
	return nil
}

// Cancel is the only lifecycle transition: CONFIRMED -> CANCELLED.
func (b *Booking) Cancel(now time.Time) error {
	if err := b.RequireActive(); err != nil {
		return err
	}
	b.Status = BookingStatusCancelled
	b.UpdatedAt = now
	return nil
}

func (b *Booking) Assignments() []SeatAssignment {
	out := make([]SeatAssignment, 0, len(b.SeatNumbers))
	for _, n := range b.SeatNumbers {
		out = append(out, SeatAssignment{BookingID: b.ID, FlightID: b.FlightID, SeatNumber: n, Active: true})
	}
	return out
}
