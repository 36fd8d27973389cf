package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func setup(t *testing.T) (*Service, *domain.Booking) {
	service, _, booking := setupWithStore(t)
	return service, booking
}

func setupWithStore(t *testing.T) (*Service, *repository.MemoryStore, *domain.Booking) {
	t.Helper()
	flight := domain.Flight{ID: 3, FlightNumber: "SU7", FromAirport: "SVO", ToAirport: "AER", BaseFareCents: 10000,
		DepartureTime: time.Date(2026, 12, 24, 6, 0, 0, 0, time.UTC), Status: domain.FlightStatusScheduled}
	store := repository.NewMemoryStore()
	store.SeedFlight(flight, []domain.Seat{
		{SeatNumber: "1A", Class: domain.SeatClassFirst, PriceModifierCents: 2000},
		{SeatNumber: "14C", Class: domain.SeatClassEconomy, PriceModifierCents: -500},
	})

	booking := &domain.Booking{ID: uuid.New(), BookingReference: "FBCAFE0001", UserID: "user-1", FlightID: 3,
		Status: domain.BookingStatusConfirmed, TotalAmountCents: 21500}
	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertBooking(ctx, booking))
	require.NoError(t, tx.InsertPassengers(ctx, booking.ID, []domain.Passenger{
		{ID: uuid.New(), FirstName: "Anna", LastName: "Ivanova", SeatNumber: "1A", SeatClass: domain.SeatClassFirst, FareCents: 10000, ModifierCents: 2000},
		{ID: uuid.New(), FirstName: "Oleg", LastName: "Ivanov", SeatNumber: "14C", SeatClass: domain.SeatClassEconomy, FareCents: 10000, ModifierCents: -500},
	}))
	require.NoError(t, tx.Commit())

	flights := &MockFlightUseCase{}
	flights.On("GetByID", mock.Anything, int64(3)).Return(&flight, nil)
	logger, _ := logtest.NewNullLogger()
	return NewService(store, flights, logger), store, booking
}

func TestService_LineItems(t *testing.T) {
	service, booking := setup(t)

	inv, err := service.LineItems(context.Background(), auth.Identity{UserID: "user-1"}, booking.ID)

	require.NoError(t, err)
	assert.Equal(t, "FBCAFE0001", inv.BookingReference)
	assert.Equal(t, int64(21500), inv.TotalCents)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, LineItem{SeatNumber: "1A", Class: domain.SeatClassFirst, PassengerName: "Anna Ivanova", FareCents: 10000, ModifierCents: 2000, AmountCents: 12000}, inv.Items[0])
	assert.Equal(t, int64(9500), inv.Items[1].AmountCents)

	_, err = service.LineItems(context.Background(), auth.Identity{UserID: "user-2"}, booking.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = service.LineItems(context.Background(), auth.Identity{Admin: true}, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_LineItems_KeepBookedPrices(t *testing.T) {
	service, store, booking := setupWithStore(t)
	ctx := context.Background()
	modifier := int64(9000)
	business := domain.SeatClassBusiness

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.UpdateSeat(ctx, 3, "14C", domain.SeatPatch{Class: &business, PriceModifierCents: &modifier})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	inv, err := service.LineItems(ctx, auth.Identity{UserID: "user-1"}, booking.ID)

	require.NoError(t, err)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, domain.SeatClassEconomy, inv.Items[1].Class)
	assert.Equal(t, int64(-500), inv.Items[1].ModifierCents)
	var sum int64
	for _, item := range inv.Items {
		sum += item.AmountCents
	}
	assert.Equal(t, inv.TotalCents, sum)
}

func TestService_RenderPDF(t *testing.T) {
	service, booking := setup(t)
	inv, err := service.LineItems(context.Background(), auth.Identity{UserID: "user-1"}, booking.ID)
	require.NoError(t, err)

	doc, err := service.RenderPDF(inv)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestArchiver_Handle(t *testing.T) {
	service, booking := setup(t)
	dir := filepath.Join(t.TempDir(), "invoices")
	archiver := NewArchiver(service, dir)

	payload, err := json.Marshal(domain.NewBookingEvent(domain.EventBookingCreated, booking, time.Now()))
	require.NoError(t, err)
	require.NoError(t, archiver.Handle(context.Background(), booking.ID.String(), payload))

	doc, err := os.ReadFile(filepath.Join(dir, "FBCAFE0001.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "220.00", formatCents(22000))
	assert.Equal(t, "-5.05", formatCents(-505))
	assert.Equal(t, "0.07", formatCents(7))
}
