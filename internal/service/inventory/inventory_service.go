package inventory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type InventoryUseCase interface {
	GetSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	GetSeat(ctx context.Context, flightID int64, seatNumber string) (*domain.Seat, error)
	ReserveSeats(ctx context.Context, tx repository.Tx, flightID int64, seatNumbers []string, class *domain.SeatClass) ([]domain.Seat, error)
	ReleaseSeats(ctx context.Context, tx repository.Tx, bookingID uuid.UUID) (int64, error)
	UpdateSeatAttributes(ctx context.Context, flightID int64, seatNumber string, patch domain.SeatPatch) (*domain.Seat, error)
	Audit(ctx context.Context, flightID int64) (domain.InventoryAudit, error)
	InvalidateSeatMap(ctx context.Context, flightID int64)
}

// SeatMapCache holds read-only seat maps. A miss returns nil seats and a nil error.
type SeatMapCache interface {
	GetSeatMap(ctx context.Context, flightID int64) ([]domain.Seat, error)
	SetSeatMap(ctx context.Context, flightID int64, seats []domain.Seat) error
	DeleteSeatMap(ctx context.Context, flightID int64) error
}

// InventoryService is the only writer of seat availability.
type InventoryService struct {
	store  repository.Store
	cache  SeatMapCache
	logger logrus.FieldLogger
}

type Option func(*InventoryService)

func WithSeatMapCache(cache SeatMapCache) Option {
	return func(s *InventoryService) {
		s.cache = cache
	}
}

func NewInventoryService(store repository.Store, logger logrus.FieldLogger, opts ...Option) *InventoryService {
	s := &InventoryService{store: store, logger: logger.WithField("component", "inventory")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InventoryService) GetSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSeatMap(ctx, flightID); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.logger.WithError(err).WithField("flight_id", flightID).Warn("seat map cache read failed")
		}
	}

	seats, err := s.store.ListSeats(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetSeatMap(ctx, flightID, seats); err != nil {
			s.logger.WithError(err).WithField("flight_id", flightID).Warn("seat map cache write failed")
		}
	}
	return seats, nil
}

func (s *InventoryService) GetSeat(ctx context.Context, flightID int64, seatNumber string) (*domain.Seat, error) {
	return s.store.GetSeat(ctx, flightID, seatNumber)
}

// ReserveSeats claims every seat in seatNumbers inside tx or none of them. The
// rows are locked first, every precondition is checked against the locked
// state, and only then are the seats flipped with a guarded update.
func (s *InventoryService) ReserveSeats(ctx context.Context, tx repository.Tx, flightID int64, seatNumbers []string, class *domain.SeatClass) ([]domain.Seat, error) {
	if len(seatNumbers) == 0 {
		return nil, domain.NewValidationError("seat_numbers", "at least one seat is required")
	}
	requested := slices.Clone(seatNumbers)
	slices.SortFunc(requested, domain.CompareSeatNumbers)
	if len(slices.Compact(slices.Clone(requested))) != len(requested) {
		return nil, domain.NewValidationError("seat_numbers", "duplicate seat numbers")
	}

	locked, err := tx.LockSeats(ctx, flightID, requested)
	if err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	byNumber := make(map[string]domain.Seat, len(locked))
	for _, seat := range locked {
		byNumber[seat.SeatNumber] = seat
	}

	var problems []domain.SeatProblem
	reserved := make([]domain.Seat, 0, len(requested))
	for _, n := range requested {
		seat, ok := byNumber[n]
		switch {
		case !ok:
			problems = append(problems, domain.SeatProblem{SeatNumber: n, Reason: domain.SeatMissing})
		case !seat.IsAvailable:
			problems = append(problems, domain.SeatProblem{SeatNumber: n, Reason: domain.SeatTaken})
		case class != nil && seat.Class != *class:
			problems = append(problems, domain.SeatProblem{SeatNumber: n, Reason: domain.SeatWrongClass})
		default:
			seat.IsAvailable = false
			reserved = append(reserved, seat)
		}
	}
	if len(problems) > 0 {
		return nil, &domain.SeatUnavailableError{FlightID: flightID, Problems: problems}
	}

	flipped, err := tx.MarkSeatsUnavailable(ctx, flightID, requested)
	if err != nil {
		return nil, fmt.Errorf("mark seats unavailable: %w", err)
	}
	if flipped != int64(len(requested)) {
		problems = make([]domain.SeatProblem, 0, len(requested))
		for _, n := range requested {
			problems = append(problems, domain.SeatProblem{SeatNumber: n, Reason: domain.SeatTaken})
		}
		return nil, &domain.SeatUnavailableError{FlightID: flightID, Problems: problems}
	}

	s.logger.WithFields(logrus.Fields{"flight_id": flightID, "seats": requested}).Debug("seats reserved")
	return reserved, nil
}

// ReleaseSeats ends the booking's active assignments and frees their seats. A
// booking that holds nothing releases zero seats.
func (s *InventoryService) ReleaseSeats(ctx context.Context, tx repository.Tx, bookingID uuid.UUID) (int64, error) {
	released, err := tx.DeactivateAssignments(ctx, bookingID)
	if err != nil {
		return 0, fmt.Errorf("deactivate assignments: %w", err)
	}
	if len(released) == 0 {
		return 0, nil
	}

	byFlight := make(map[int64][]string)
	for _, a := range released {
		byFlight[a.FlightID] = append(byFlight[a.FlightID], a.SeatNumber)
	}
	var total int64
	for _, flightID := range slices.Sorted(maps.Keys(byFlight)) {
		seats := byFlight[flightID]
		slices.SortFunc(seats, domain.CompareSeatNumbers)
		// Same lock order as ReserveSeats, so a cancel and a booking naming
		// the same seats queue instead of deadlocking.
		if _, err := tx.LockSeats(ctx, flightID, seats); err != nil {
			return 0, fmt.Errorf("lock seats: %w", err)
		}
		n, err := tx.MarkSeatsAvailable(ctx, flightID, seats)
		if err != nil {
			return 0, fmt.Errorf("mark seats available: %w", err)
		}
		total += n
	}
	return total, nil
}

// UpdateSeatAttributes applies an administrative override. Availability may
// only be changed towards agreement with the assignment records.
func (s *InventoryService) UpdateSeatAttributes(ctx context.Context, flightID int64, seatNumber string, patch domain.SeatPatch) (*domain.Seat, error) {
	if patch.Empty() {
		return nil, domain.NewValidationError("patch", "no attributes to update")
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := tx.LockSeats(ctx, flightID, []string{seatNumber})
	if err != nil {
		return nil, fmt.Errorf("lock seat: %w", err)
	}
	if len(locked) == 0 {
		return nil, domain.ErrNotFound
	}

	if patch.IsAvailable != nil && *patch.IsAvailable != locked[0].IsAvailable {
		assigned, err := tx.HasActiveAssignment(ctx, flightID, seatNumber)
		if err != nil {
			return nil, fmt.Errorf("check assignment: %w", err)
		}
		if *patch.IsAvailable == assigned {
			return nil, fmt.Errorf("seat %s availability would contradict its assignment: %w", seatNumber, domain.ErrInvalidState)
		}
	}

	seat, err := tx.UpdateSeat(ctx, flightID, seatNumber, patch)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seat update: %w", err)
	}
	s.InvalidateSeatMap(ctx, flightID)

	s.logger.WithFields(logrus.Fields{"flight_id": flightID, "seat": seatNumber}).Info("seat attributes updated")
	return seat, nil
}

func (s *InventoryService) Audit(ctx context.Context, flightID int64) (domain.InventoryAudit, error) {
	audit, err := s.store.AuditFlight(ctx, flightID)
	if err != nil {
		return audit, fmt.Errorf("audit flight %d: %w", flightID, err)
	}
	if !audit.Consistent {
		s.logger.WithFields(logrus.Fields{
			"flight_id":          flightID,
			"unavailable_seats":  audit.UnavailableSeats,
			"active_assignments": audit.ActiveAssignments,
		}).Error("seat inventory out of sync with assignments")
	}
	return audit, nil
}

func (s *InventoryService) InvalidateSeatMap(ctx context.Context, flightID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteSeatMap(context.WithoutCancel(ctx), flightID); err != nil {
		s.logger.WithError(err).WithField("flight_id", flightID).Warn("seat map cache invalidation failed")
	}
}

// IsSeatUnavailable extracts the per-seat reasons from a reservation failure.
func IsSeatUnavailable(err error) ([]domain.SeatProblem, bool) {
	var target *domain.SeatUnavailableError
	if errors.As(err, &target) {
		return target.Problems, true
	}
	return nil, false
}

var _ InventoryUseCase = (*InventoryService)(nil)
