package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking_created"
	EventBookingCancelled EventType = "booking_cancelled"
)

// BookingEvent is the fact handed to the notification and invoice collaborators.
type BookingEvent struct {
	Event            EventType `json:"event"`
	BookingID        uuid.UUID `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	UserID           string    `json:"user_id"`
	FlightID         int64     `json:"flight_id"`
	AmountCents      int64     `json:"amount_cents"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func NewBookingEvent(t EventType, b *Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Event:            t,
		BookingID:        b.ID,
		BookingReference: b.BookingReference,
		UserID:           b.UserID,
		FlightID:         b.FlightID,
		AmountCents:      b.TotalAmountCents,
		OccurredAt:       at,
	}
}

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// OutboxMessage is written in the same transaction as the booking change it describes.
type OutboxMessage struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Topic     string       `json:"topic" db:"topic"`
	Key       string       `json:"key" db:"message_key"`
	Payload   []byte       `json:"payload" db:"payload"`
	Status    OutboxStatus `json:"status" db:"status"`
	Attempts  int          `json:"attempts" db:"attempts"`
	LastError string       `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	// NextAttemptAt is when the message may be claimed again.
	NextAttemptAt time.Time `json:"next_attempt_at" db:"next_attempt_at"`
}
