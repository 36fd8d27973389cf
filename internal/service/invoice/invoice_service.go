package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type InvoiceUseCase interface {
	LineItems(ctx context.Context, identity auth.Identity, bookingID uuid.UUID) (*Invoice, error)
	RenderPDF(inv *Invoice) ([]byte, error)
}

type LineItem struct {
	SeatNumber    string           `json:"seat_number"`
	Class         domain.SeatClass `json:"class"`
	PassengerName string           `json:"passenger_name"`
	FareCents     int64            `json:"fare_cents"`
	ModifierCents int64            `json:"modifier_cents"`
	AmountCents   int64            `json:"amount_cents"`
}

type Invoice struct {
	BookingID        uuid.UUID            `json:"booking_id"`
	BookingReference string               `json:"booking_reference"`
	Status           domain.BookingStatus `json:"status"`
	Flight           domain.Flight        `json:"flight"`
	Items            []LineItem           `json:"items"`
	// TotalCents is the amount charged at booking time.
	TotalCents int64     `json:"total_cents"`
	IssuedAt   time.Time `json:"issued_at"`
}

type Service struct {
	store   repository.Store
	flights flights.FlightUseCase
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewService(store repository.Store, flightSvc flights.FlightUseCase, logger logrus.FieldLogger) *Service {
	return &Service{
		store:   store,
		flights: flightSvc,
		logger:  logger.WithField("component", "invoice"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LineItems assembles the invoice for a booking the caller may see.
func (s *Service) LineItems(ctx context.Context, identity auth.Identity, bookingID uuid.UUID) (*Invoice, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.OwnedBy(identity.UserID, identity.Admin) {
		return nil, domain.ErrForbidden
	}
	flight, err := s.flights.GetByID(ctx, booking.FlightID)
	if err != nil {
		return nil, fmt.Errorf("load flight %d: %w", booking.FlightID, err)
	}

	inv := &Invoice{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		Status:           booking.Status,
		Flight:           *flight,
		TotalCents:       booking.TotalAmountCents,
		IssuedAt:         s.now(),
		Items:            make([]LineItem, 0, len(booking.Passengers)),
	}
	for _, p := range booking.Passengers {
		inv.Items = append(inv.Items, LineItem{
			SeatNumber:    p.SeatNumber,
			Class:         p.SeatClass,
			PassengerName: p.FirstName + " " + p.LastName,
			FareCents:     p.FareCents,
			ModifierCents: p.ModifierCents,
			AmountCents:   p.AmountCents(),
		})
	}
	return inv, nil
}

func (s *Service) RenderPDF(inv *Invoice) ([]byte, error) {
	return renderPDF(inv)
}

// Archiver handles invoices topic messages by writing each booking's PDF to dir.
type Archiver struct {
	service *Service
	dir     string
	logger  logrus.FieldLogger
}

func NewArchiver(service *Service, dir string) *Archiver {
	return &Archiver{service: service, dir: dir, logger: service.logger}
}

func (a *Archiver) Handle(ctx context.Context, _ string, payload []byte) error {
	var event domain.BookingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	inv, err := a.service.LineItems(ctx, auth.Identity{UserID: event.UserID}, event.BookingID)
	if err != nil {
		return err
	}
	doc, err := a.service.RenderPDF(inv)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create invoice dir: %w", err)
	}
	path := filepath.Join(a.dir, inv.BookingReference+".pdf")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("write invoice: %w", err)
	}
	a.logger.WithFields(logrus.Fields{"booking_id": inv.BookingID, "path": path}).Info("invoice archived")
	return nil
}
