package email

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

// Sender turns booking events into passenger notifications. Delivery is
// logged; the mail transport lives outside this service.
type Sender struct {
	bookings BookingReader
	logger   logrus.FieldLogger
}

func NewSender(bookings BookingReader, logger logrus.FieldLogger) *Sender {
	return &Sender{bookings: bookings, logger: logger.WithField("component", "email")}
}

// Handle decodes a notifications topic message and sends it.
func (s *Sender) Handle(ctx context.Context, _ string, payload []byte) error {
	var event domain.BookingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	return s.Send(ctx, event)
}

func (s *Sender) Send(ctx context.Context, event domain.BookingEvent) error {
	booking, err := s.bookings.GetBooking(ctx, event.BookingID)
	if err != nil {
		return fmt.Errorf("load booking %s: %w", event.BookingID, err)
	}

	recipients := Recipients(booking)
	log := s.logger.WithFields(logrus.Fields{"booking_id": event.BookingID, "event": event.Event})
	if len(recipients) == 0 {
		log.Info("no passenger email on booking, notification skipped")
		return nil
	}
	for _, to := range recipients {
		log.WithFields(logrus.Fields{"to": to, "subject": Subject(event)}).Info("email sent")
	}
	return nil
}

func Subject(event domain.BookingEvent) string {
	switch event.Event {
	case domain.EventBookingCreated:
		return fmt.Sprintf("Booking %s confirmed", event.BookingReference)
	case domain.EventBookingCancelled:
		return fmt.Sprintf("Booking %s cancelled", event.BookingReference)
	default:
		return fmt.Sprintf("Booking %s updated", event.BookingReference)
	}
}

// Recipients returns the distinct passenger emails in passenger order.
func Recipients(b *domain.Booking) []string {
	out := make([]string, 0, len(b.Passengers))
	for _, p := range b.Passengers {
		if p.Email != "" && !slices.Contains(out, p.Email) {
			out = append(out, p.Email)
		}
	}
	return out
}
