package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/payment"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/saga"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const referenceAttempts = 10

type BookingUseCase interface {
	CreateBooking(ctx context.Context, identity auth.Identity, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, identity auth.Identity, id uuid.UUID) (*domain.Booking, error)
	CancelBooking(ctx context.Context, identity auth.Identity, id uuid.UUID) (*domain.Booking, error)
}

type PassengerInput struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	SeatNumber     string `json:"seat_number"`
}

type PaymentInput struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CCV        string `json:"ccv"`
}

type CreateBookingInput struct {
	FlightID   int64            `json:"flight_id"`
	SeatClass  string           `json:"seat_class,omitempty"`
	Passengers []PassengerInput `json:"passengers"`
	Payment    PaymentInput     `json:"payment"`
	// BookingDate is YYYY-MM-DD or RFC3339. Empty means now.
	BookingDate string `json:"booking_date,omitempty"`
}

// Topics names the outbox destinations. Empty topics are skipped.
type Topics struct {
	BookingEvents string
	Notifications string
	Invoices      string
}

type BookingService struct {
	flights   flights.FlightUseCase
	inventory inventory.InventoryUseCase
	store     repository.Store
	topics    Topics
	logger    logrus.FieldLogger

	compensationRetries int
	compensationBackoff time.Duration

	now          func() time.Time
	sleep        func(time.Duration)
	newReference func() (string, error)
}

type BookingServiceOption func(*BookingService)

func WithTopics(topics Topics) BookingServiceOption {
	return func(s *BookingService) {
		s.topics = topics
	}
}

// WithCompensation sets how many times a failed seat release is retried and
// the initial delay between attempts. The delay doubles on each retry.
func WithCompensation(retries int, backoff time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.compensationRetries = retries
		s.compensationBackoff = backoff
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	flightSvc flights.FlightUseCase,
	inventorySvc inventory.InventoryUseCase,
	store repository.Store,
	logger logrus.FieldLogger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		flights:             flightSvc,
		inventory:           inventorySvc,
		store:               store,
		logger:              logger.WithField("component", "booking"),
		compensationRetries: 5,
		compensationBackoff: 200 * time.Millisecond,
		now:                 func() time.Time { return time.Now().UTC() },
		sleep:               time.Sleep,
		newReference:        generateReference,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, identity auth.Identity, input CreateBookingInput) (*domain.Booking, error) {
	seatNumbers, err := validateInput(input)
	if err != nil {
		return nil, err
	}
	var class *domain.SeatClass
	if input.SeatClass != "" {
		c, err := domain.ParseSeatClass(input.SeatClass)
		if err != nil {
			return nil, err
		}
		class = &c
	}

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("flight %d: %w", input.FlightID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get flight: %v", domain.ErrPersistence, err)
	}
	if !flight.Bookable() {
		return nil, fmt.Errorf("flight %d is %s: %w", flight.ID, flight.Status, domain.ErrNotFound)
	}

	bookingDate := input.BookingDate
	if bookingDate == "" {
		bookingDate = s.now().Format(time.RFC3339Nano)
	}
	if !payment.ValidatePayment(input.Payment.CardNumber, input.Payment.Expiry, input.Payment.CCV, bookingDate) {
		return nil, domain.ErrInvalidPayment
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	log := s.logger.WithFields(logrus.Fields{"flight_id": flight.ID, "seats": seatNumbers, "user_id": identity.UserID})
	booking := &domain.Booking{
		ID:          uuid.New(),
		UserID:      identity.UserID,
		FlightID:    flight.ID,
		Status:      domain.BookingStatusConfirmed,
		SeatNumbers: seatNumbers,
		Passengers:  newPassengers(input.Passengers),
	}
	var reserved []domain.Seat

	err = saga.New(
		saga.Step{
			Name: "reserve_seats",
			Run: func(ctx context.Context) (err error) {
				reserved, err = s.inventory.ReserveSeats(ctx, tx, flight.ID, seatNumbers, class)
				return err
			},
			Compensate: func(ctx context.Context) error {
				// A clean rollback already restored the seats. Otherwise the
				// transaction's fate is unknown and orphans are swept.
				if err := tx.Rollback(); err == nil {
					return nil
				}
				return s.releaseOrphanedSeats(ctx, log, flight.ID, seatNumbers)
			},
		},
		saga.Step{
			Name: "price",
			Run: func(context.Context) (err error) {
				booking.TotalAmountCents, err = pricing.ComputeTotal(flight.BaseFareCents, reserved)
				if err != nil {
					return domain.NewValidationError("seat_numbers", err.Error())
				}
				priceSeats(booking.Passengers, flight.BaseFareCents, reserved)
				return nil
			},
		},
		saga.Step{
			Name: "persist",
			Run: func(ctx context.Context) error {
				return s.persist(ctx, tx, booking)
			},
		},
		saga.Step{
			Name: "commit",
			Run: func(context.Context) error {
				return tx.Commit()
			},
		},
	).Execute(ctx)
	if err != nil {
		return nil, s.classify(log, err)
	}

	s.inventory.InvalidateSeatMap(ctx, flight.ID)
	log.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"amount_cents":      booking.TotalAmountCents,
	}).Info("booking confirmed")
	return booking, nil
}

func (s *BookingService) persist(ctx context.Context, tx repository.Tx, booking *domain.Booking) error {
	reference, err := s.uniqueReference(ctx, tx)
	if err != nil {
		return err
	}
	booking.BookingReference = reference

	if err := tx.InsertBooking(ctx, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if err := tx.InsertPassengers(ctx, booking.ID, booking.Passengers); err != nil {
		return fmt.Errorf("insert passengers: %w", err)
	}
	if err := tx.InsertSeatAssignments(ctx, booking.Assignments()); err != nil {
		return fmt.Errorf("insert seat assignments: %w", err)
	}

	messages, err := s.outboxMessages(domain.NewBookingEvent(domain.EventBookingCreated, booking, booking.CreatedAt),
		s.topics.BookingEvents, s.topics.Notifications, s.topics.Invoices)
	if err != nil {
		return err
	}
	return tx.EnqueueOutbox(ctx, messages...)
}

func (s *BookingService) uniqueReference(ctx context.Context, tx repository.Tx) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		reference, err := s.newReference()
		if err != nil {
			return "", fmt.Errorf("generate booking reference: %w", err)
		}
		exists, err := tx.ReferenceExists(ctx, reference)
		if err != nil {
			return "", fmt.Errorf("check booking reference: %w", err)
		}
		if !exists {
			return reference, nil
		}
	}
	return "", fmt.Errorf("no unique booking reference after %d attempts", referenceAttempts)
}

// releaseOrphanedSeats runs after the booking transaction was abandoned. It only
// frees seats that no active assignment holds, so repeating it is harmless.
func (s *BookingService) releaseOrphanedSeats(ctx context.Context, log logrus.FieldLogger, flightID int64, seatNumbers []string) error {
	backoff := s.compensationBackoff
	var lastErr error
	for attempt := 0; attempt <= s.compensationRetries; attempt++ {
		if attempt > 0 {
			s.sleep(backoff)
			backoff *= 2
		}
		released, err := s.store.ReleaseOrphanedSeats(ctx, flightID, seatNumbers)
		if err == nil {
			if released > 0 {
				log.WithField("released", released).Warn("released seats left behind by failed booking")
			}
			return nil
		}
		lastErr = err
		log.WithError(err).WithField("attempt", attempt+1).Warn("seat release compensation failed")
	}
	log.WithError(lastErr).Error("seat inventory inconsistent: compensation retries exhausted")
	return lastErr
}

// classify maps a saga failure to the caller-facing error taxonomy.
func (s *BookingService) classify(log logrus.FieldLogger, err error) error {
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	switch {
	case errors.Is(stepErr.Err, domain.ErrSeatUnavailable),
		errors.Is(stepErr.Err, domain.ErrValidation),
		errors.Is(stepErr.Err, domain.ErrNotFound):
		log.WithError(stepErr.Err).WithField("step", stepErr.Step).Info("booking rejected")
		return stepErr.Err
	}
	log.WithError(err).WithField("step", stepErr.Step).Error("booking failed")
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, stepErr.Step, stepErr.Err)
}

func (s *BookingService) GetBooking(ctx context.Context, identity auth.Identity, id uuid.UUID) (*domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.OwnedBy(identity.UserID, identity.Admin) {
		return nil, domain.ErrForbidden
	}
	return booking, nil
}

// CancelBooking cancels a confirmed booking and frees its seats in one
// transaction. A booking that is already cancelled is returned together with
// domain.ErrAlreadyCancelled.
func (s *BookingService) CancelBooking(ctx context.Context, identity auth.Identity, id uuid.UUID) (*domain.Booking, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	booking, err := tx.GetBookingForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load booking: %v", domain.ErrPersistence, err)
	}
	if !booking.OwnedBy(identity.UserID, identity.Admin) {
		return nil, domain.ErrForbidden
	}
	if booking.Status == domain.BookingStatusCancelled {
		return booking, domain.ErrAlreadyCancelled
	}

	now := s.now()
	if err := booking.Cancel(now); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"booking_id": booking.ID, "flight_id": booking.FlightID})

	if err := tx.UpdateBookingStatus(ctx, booking.ID, booking.Status, now); err != nil {
		return nil, fmt.Errorf("%w: update booking status: %v", domain.ErrPersistence, err)
	}
	released, err := s.inventory.ReleaseSeats(ctx, tx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: release seats: %v", domain.ErrPersistence, err)
	}
	messages, err := s.outboxMessages(domain.NewBookingEvent(domain.EventBookingCancelled, booking, now),
		s.topics.BookingEvents, s.topics.Notifications)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueOutbox(ctx, messages...); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit cancellation: %v", domain.ErrPersistence, err)
	}

	s.inventory.InvalidateSeatMap(ctx, booking.FlightID)
	log.WithField("released", released).Info("booking cancelled")
	return booking, nil
}

func (s *BookingService) outboxMessages(event domain.BookingEvent, topics ...string) ([]domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Event, err)
	}
	messages := make([]domain.OutboxMessage, 0, len(topics))
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		messages = append(messages, domain.OutboxMessage{
			ID:      uuid.New(),
			Topic:   topic,
			Key:     event.BookingID.String(),
			Payload: payload,
		})
	}
	return messages, nil
}

// validateInput returns the requested seat numbers in seat order.
func validateInput(input CreateBookingInput) ([]string, error) {
	if input.FlightID <= 0 {
		return nil, domain.NewValidationError("flight_id", "is required")
	}
	if len(input.Passengers) == 0 {
		return nil, domain.NewValidationError("passengers", "at least one passenger is required")
	}

	seen := make(map[string]struct{}, len(input.Passengers))
	seats := make([]string, 0, len(input.Passengers))
	for i, p := range input.Passengers {
		field := fmt.Sprintf("passengers[%d]", i)
		if strings.TrimSpace(p.FirstName) == "" {
			return nil, domain.NewValidationError(field+".first_name", "is required")
		}
		if strings.TrimSpace(p.LastName) == "" {
			return nil, domain.NewValidationError(field+".last_name", "is required")
		}
		seat := strings.TrimSpace(p.SeatNumber)
		if seat == "" {
			return nil, domain.NewValidationError(field+".seat_number", "is required")
		}
		if _, dup := seen[seat]; dup {
			return nil, domain.NewValidationError(field+".seat_number", fmt.Sprintf("seat %s requested twice", seat))
		}
		seen[seat] = struct{}{}
		seats = append(seats, seat)
	}
	slices.SortFunc(seats, domain.CompareSeatNumbers)
	return seats, nil
}

// priceSeats copies each passenger's seat price onto the passenger so invoices
// keep the amounts that were charged.
func priceSeats(passengers []domain.Passenger, baseFareCents int64, seats []domain.Seat) {
	bySeat := make(map[string]domain.Seat, len(seats))
	for _, seat := range seats {
		bySeat[seat.SeatNumber] = seat
	}
	for i := range passengers {
		seat := bySeat[passengers[i].SeatNumber]
		passengers[i].SeatClass = seat.Class
		passengers[i].FareCents = baseFareCents
		passengers[i].ModifierCents = seat.PriceModifierCents
	}
}

func newPassengers(in []PassengerInput) []domain.Passenger {
	out := make([]domain.Passenger, 0, len(in))
	for _, p := range in {
		out = append(out, domain.Passenger{
			ID:             uuid.New(),
			FirstName:      strings.TrimSpace(p.FirstName),
			LastName:       strings.TrimSpace(p.LastName),
			Email:          p.Email,
			DocumentNumber: p.DocumentNumber,
			DateOfBirth:    p.DateOfBirth,
			SeatNumber:     strings.TrimSpace(p.SeatNumber),
		})
	}
	return out
}

func generateReference() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "FB" + strings.ToUpper(hex.EncodeToString(b)), nil
}

var _ BookingUseCase = (*BookingService)(nil)
