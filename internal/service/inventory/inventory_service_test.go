package inventory

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSeatMapCache struct {
	mock.Mock
}

func (m *MockSeatMapCache) GetSeatMap(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockSeatMapCache) SetSeatMap(ctx context.Context, flightID int64, seats []domain.Seat) error {
	args := m.Called(ctx, flightID, seats)
	return args.Error(0)
}

func (m *MockSeatMapCache) DeleteSeatMap(ctx context.Context, flightID int64) error {
	args := m.Called(ctx, flightID)
	return args.Error(0)
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seededStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	store.SeedFlight(domain.Flight{
		ID:            7,
		FlightNumber:  "SU100",
		DepartureTime: time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC),
		BaseFareCents: 10000,
		Status:        domain.FlightStatusScheduled,
	}, []domain.Seat{
		{SeatNumber: "1A", Class: domain.SeatClassBusiness, PriceModifierCents: 5000, IsAvailable: true},
		{SeatNumber: "1B", Class: domain.SeatClassBusiness, PriceModifierCents: 5000, IsAvailable: true},
		{SeatNumber: "10A", Class: domain.SeatClassEconomy, IsAvailable: true},
		{SeatNumber: "2A", Class: domain.SeatClassEconomy, IsAvailable: true},
	})
	return store
}

func availability(t *testing.T, store repository.Store, seat string) bool {
	t.Helper()
	s, err := store.GetSeat(context.Background(), 7, seat)
	require.NoError(t, err)
	return s.IsAvailable
}

// book reserves seats for a new booking and commits it with its assignments.
func book(t *testing.T, store repository.Store, service *InventoryService, seats ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	bookingID := uuid.New()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = service.ReserveSeats(ctx, tx, 7, seats, nil)
	require.NoError(t, err)
	require.NoError(t, insertBooking(ctx, tx, bookingID, seats))
	require.NoError(t, tx.Commit())
	return bookingID
}

func insertBooking(ctx context.Context, tx repository.Tx, bookingID uuid.UUID, seats []string) error {
	b := &domain.Booking{ID: bookingID, BookingReference: "FB" + bookingID.String()[:8], FlightID: 7, Status: domain.BookingStatusConfirmed, SeatNumbers: seats}
	if err := tx.InsertBooking(ctx, b); err != nil {
		return err
	}
	return tx.InsertSeatAssignments(ctx, b.Assignments())
}

// orphan flips seats without recording an assignment, the state a failed
// compensation leaves behind.
func orphan(t *testing.T, store repository.Store, seats ...string) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.MarkSeatsUnavailable(ctx, 7, seats)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func assertConsistent(t *testing.T, service *InventoryService) {
	t.Helper()
	audit, err := service.Audit(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "unavailable=%d active=%d", audit.UnavailableSeats, audit.ActiveAssignments)
}

func TestInventoryService_GetSeats_OrderedAndCached(t *testing.T) {
	store := seededStore()
	cache := &MockSeatMapCache{}
	service := NewInventoryService(store, silentLogger(), WithSeatMapCache(cache))
	ctx := context.Background()

	cache.On("GetSeatMap", ctx, int64(7)).Return(nil, nil).Once()
	cache.On("SetSeatMap", ctx, int64(7), mock.AnythingOfType("[]domain.Seat")).Return(nil).Once()

	seats, err := service.GetSeats(ctx, 7)
	require.NoError(t, err)
	numbers := make([]string, 0, len(seats))
	for _, s := range seats {
		numbers = append(numbers, s.SeatNumber)
	}
	assert.Equal(t, []string{"1A", "1B", "2A", "10A"}, numbers)

	cached := []domain.Seat{{FlightID: 7, SeatNumber: "1A"}}
	cache.On("GetSeatMap", ctx, int64(7)).Return(cached, nil).Once()
	seats, err = service.GetSeats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, cached, seats)

	cache.AssertExpectations(t)
}

func TestInventoryService_GetSeats_CacheErrorFallsBack(t *testing.T) {
	cache := &MockSeatMapCache{}
	service := NewInventoryService(seededStore(), silentLogger(), WithSeatMapCache(cache))
	ctx := context.Background()

	cache.On("GetSeatMap", ctx, int64(7)).Return(nil, errors.New("redis down")).Once()
	cache.On("SetSeatMap", ctx, int64(7), mock.Anything).Return(errors.New("redis down")).Once()

	seats, err := service.GetSeats(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, seats, 4)
}

func TestInventoryService_GetSeat(t *testing.T) {
	service := NewInventoryService(seededStore(), silentLogger())

	seat, err := service.GetSeat(context.Background(), 7, "2A")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatClassEconomy, seat.Class)

	_, err = service.GetSeat(context.Background(), 7, "99Z")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryService_ReserveSeats(t *testing.T) {
	business := domain.SeatClassBusiness

	testCases := []struct {
		name             string
		prebooked        []string
		seats            []string
		class            *domain.SeatClass
		expectedProblems []domain.SeatProblem
	}{
		{
			name:  "all seats free",
			seats: []string{"1B", "1A"},
			class: &business,
		},
		{
			name:             "one seat taken",
			prebooked:        []string{"1B"},
			seats:            []string{"1A", "1B"},
			expectedProblems: []domain.SeatProblem{{SeatNumber: "1B", Reason: domain.SeatTaken}},
		},
		{
			name:             "unknown seat",
			seats:            []string{"1A", "42C"},
			expectedProblems: []domain.SeatProblem{{SeatNumber: "42C", Reason: domain.SeatMissing}},
		},
		{
			name:             "wrong class",
			seats:            []string{"1A", "2A"},
			class:            &business,
			expectedProblems: []domain.SeatProblem{{SeatNumber: "2A", Reason: domain.SeatWrongClass}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore()
			service := NewInventoryService(store, silentLogger())
			ctx := context.Background()
			if len(tc.prebooked) > 0 {
				book(t, store, service, tc.prebooked...)
			}

			tx, err := store.BeginTx(ctx)
			require.NoError(t, err)
			seats, err := service.ReserveSeats(ctx, tx, 7, tc.seats, tc.class)

			if tc.expectedProblems == nil {
				require.NoError(t, err)
				require.Len(t, seats, len(tc.seats))
				assert.Equal(t, "1A", seats[0].SeatNumber)
				for _, seat := range seats {
					assert.False(t, seat.IsAvailable)
				}
				require.NoError(t, insertBooking(ctx, tx, uuid.New(), tc.seats))
				require.NoError(t, tx.Commit())
				for _, n := range tc.seats {
					assert.False(t, availability(t, store, n))
				}
				assertConsistent(t, service)
				return
			}

			require.ErrorIs(t, err, domain.ErrSeatUnavailable)
			problems, ok := IsSeatUnavailable(err)
			require.True(t, ok)
			assert.Equal(t, tc.expectedProblems, problems)
			require.NoError(t, tx.Rollback())
			assert.True(t, availability(t, store, "1A"), "no seat may be flipped when any precondition fails")
			assertConsistent(t, service)
		})
	}
}

func TestInventoryService_ReserveSeats_RollbackReleases(t *testing.T) {
	store := seededStore()
	service := NewInventoryService(store, silentLogger())
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = service.ReserveSeats(ctx, tx, 7, []string{"1A", "2A"}, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.True(t, availability(t, store, "1A"))
	assert.True(t, availability(t, store, "2A"))
	assertConsistent(t, service)
}

func TestInventoryService_ReserveSeats_RejectsBadInput(t *testing.T) {
	store := seededStore()
	service := NewInventoryService(store, silentLogger())
	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = service.ReserveSeats(ctx, tx, 7, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.ReserveSeats(ctx, tx, 7, []string{"1A", "1A"}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInventoryService_ReserveSeats_SingleWinner(t *testing.T) {
	store := seededStore()
	service := NewInventoryService(store, silentLogger())

	const contenders = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		losses  int
		unknown []error
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			tx, err := store.BeginTx(ctx)
			if err == nil {
				defer tx.Rollback()
				seats := []string{"2A", "10A"}
				if _, err = service.ReserveSeats(ctx, tx, 7, seats, nil); err == nil {
					if err = insertBooking(ctx, tx, uuid.New(), seats); err == nil {
						err = tx.Commit()
					}
				}
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrSeatUnavailable):
				losses++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, losses)
	assertConsistent(t, service)
}

func TestInventoryService_ReleaseSeats_Idempotent(t *testing.T) {
	store := seededStore()
	service := NewInventoryService(store, silentLogger())
	ctx := context.Background()
	bookingID := book(t, store, service, "1A", "1B")

	release := func() int64 {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)
		n, err := service.ReleaseSeats(ctx, tx, bookingID)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		return n
	}

	assert.Equal(t, int64(2), release())
	assert.Equal(t, int64(0), release())
	assert.True(t, availability(t, store, "1A"))
	assert.True(t, availability(t, store, "1B"))

	audit, err := service.Audit(ctx, 7)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
}

type recordingTx struct {
	repository.Tx
	calls []string
}

func (r *recordingTx) LockSeats(ctx context.Context, flightID int64, seatNumbers []string) ([]domain.Seat, error) {
	r.calls = append(r.calls, "lock "+strings.Join(seatNumbers, ","))
	return r.Tx.LockSeats(ctx, flightID, seatNumbers)
}

func (r *recordingTx) MarkSeatsAvailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	r.calls = append(r.calls, "free "+strings.Join(seatNumbers, ","))
	return r.Tx.MarkSeatsAvailable(ctx, flightID, seatNumbers)
}

func TestInventoryService_ReleaseSeats_LocksInSeatOrder(t *testing.T) {
	store := seededStore()
	service := NewInventoryService(store, silentLogger())
	ctx := context.Background()
	bookingID := book(t, store, service, "10A", "2A", "1A")

	inner, err := store.BeginTx(ctx)
	require.NoError(t, err)
	tx := &recordingTx{Tx: inner}
	n, err := service.ReleaseSeats(ctx, tx, bookingID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(3), n)
	assert.Equal(t, []string{"lock 1A,2A,10A", "free 1A,2A,10A"}, tx.calls)
	assertConsistent(t, service)
}

func TestInventoryService_UpdateSeatAttributes(t *testing.T) {
	first := domain.SeatClassFirst
	modifier := int64(7500)
	unavailable := false
	available := true

	t.Run("class and price", func(t *testing.T) {
		cache := &MockSeatMapCache{}
		service := NewInventoryService(seededStore(), silentLogger(), WithSeatMapCache(cache))
		cache.On("DeleteSeatMap", mock.Anything, int64(7)).Return(nil).Once()

		seat, err := service.UpdateSeatAttributes(context.Background(), 7, "2A", domain.SeatPatch{Class: &first, PriceModifierCents: &modifier})
		require.NoError(t, err)
		assert.Equal(t, domain.SeatClassFirst, seat.Class)
		assert.Equal(t, int64(7500), seat.PriceModifierCents)
		assert.True(t, seat.IsAvailable)
		cache.AssertExpectations(t)
	})

	t.Run("cannot hide an unassigned seat", func(t *testing.T) {
		store := seededStore()
		service := NewInventoryService(store, silentLogger())

		_, err := service.UpdateSeatAttributes(context.Background(), 7, "2A", domain.SeatPatch{IsAvailable: &unavailable})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.True(t, availability(t, store, "2A"))
	})

	t.Run("repairs an orphaned seat", func(t *testing.T) {
		store := seededStore()
		service := NewInventoryService(store, silentLogger())
		orphan(t, store, "2A")

		seat, err := service.UpdateSeatAttributes(context.Background(), 7, "2A", domain.SeatPatch{IsAvailable: &available})
		require.NoError(t, err)
		assert.True(t, seat.IsAvailable)
	})

	t.Run("unknown seat", func(t *testing.T) {
		service := NewInventoryService(seededStore(), silentLogger())
		_, err := service.UpdateSeatAttributes(context.Background(), 7, "77Q", domain.SeatPatch{Class: &first})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty patch", func(t *testing.T) {
		service := NewInventoryService(seededStore(), silentLogger())
		_, err := service.UpdateSeatAttributes(context.Background(), 7, "2A", domain.SeatPatch{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestInventoryService_Audit_DetectsOrphan(t *testing.T) {
	store := seededStore()
	service := NewInventoryService(store, silentLogger())
	orphan(t, store, "1A")

	audit, err := service.Audit(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, audit.UnavailableSeats)
	assert.Equal(t, 0, audit.ActiveAssignments)
	assert.False(t, audit.Consistent)

	released, err := store.ReleaseOrphanedSeats(context.Background(), 7, []string{"1A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)
	audit, err = service.Audit(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
}
