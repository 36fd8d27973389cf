package api

import (
	"context"
	"io"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/invoice"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
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

type MockInventoryUseCase struct {
	mock.Mock
}

func (m *MockInventoryUseCase) GetSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	args := m.Called(ctx, flightID)
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockInventoryUseCase) GetSeat(ctx context.Context, flightID int64, seatNumber string) (*domain.Seat, error) {
	args := m.Called(ctx, flightID, seatNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Seat), args.Error(1)
}

func (m *MockInventoryUseCase) ReserveSeats(ctx context.Context, tx repository.Tx, flightID int64, seatNumbers []string, class *domain.SeatClass) ([]domain.Seat, error) {
	args := m.Called(ctx, tx, flightID, seatNumbers, class)
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockInventoryUseCase) ReleaseSeats(ctx context.Context, tx repository.Tx, bookingID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, bookingID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInventoryUseCase) UpdateSeatAttributes(ctx context.Context, flightID int64, seatNumber string, patch domain.SeatPatch) (*domain.Seat, error) {
	args := m.Called(ctx, flightID, seatNumber, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Seat), args.Error(1)
}

func (m *MockInventoryUseCase) Audit(ctx context.Context, flightID int64) (domain.InventoryAudit, error) {
	args := m.Called(ctx, flightID)
	return args.Get(0).(domain.InventoryAudit), args.Error(1)
}

func (m *MockInventoryUseCase) InvalidateSeatMap(ctx context.Context, flightID int64) {
	m.Called(ctx, flightID)
}

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, identity auth.Identity, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, identity, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, identity auth.Identity, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, identity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, identity auth.Identity, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, identity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockInvoiceUseCase struct {
	mock.Mock
}

func (m *MockInvoiceUseCase) LineItems(ctx context.Context, identity auth.Identity, bookingID uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, identity, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceUseCase) RenderPDF(inv *invoice.Invoice) ([]byte, error) {
	args := m.Called(inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testTokensConfigWithSecret(secret string) config.AuthConfig {
	return config.AuthConfig{JWTSecret: secret, AdminRole: "admin"}
}

func testTokens() *auth.TokenService {
	return auth.NewTokenService(testTokensConfigWithSecret("test-secret"))
}
