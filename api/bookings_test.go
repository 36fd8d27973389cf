package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/invoice"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var customer = auth.Identity{UserID: "user-1", Role: "customer"}

type bookingRouter struct {
	router   *gin.Engine
	bookings *MockBookingUseCase
	invoices *MockInvoiceUseCase
	token    string
}

func newBookingRouter(t *testing.T) *bookingRouter {
	t.Helper()
	r := &bookingRouter{bookings: &MockBookingUseCase{}, invoices: &MockInvoiceUseCase{}}
	r.router = newTestRouter(&MockFlightUseCase{}, &MockInventoryUseCase{}, r.bookings, r.invoices)
	token, err := testTokens().Issue(customer.UserID, customer.Role, time.Minute)
	require.NoError(t, err)
	r.token = token
	return r
}

func (r *bookingRouter) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID:               uuid.MustParse("6f1c2a9e-58a4-4cf0-9d5e-8f1d0b1c2a3b"),
		BookingReference: "FB0A1B2C3D",
		UserID:           customer.UserID,
		FlightID:         1,
		Status:           domain.BookingStatusConfirmed,
		TotalAmountCents: 15000,
		SeatNumbers:      []string{"1A"},
	}
}

func TestBookingHandler_create(t *testing.T) {
	r := newBookingRouter(t)
	input := booking.CreateBookingInput{
		FlightID:   1,
		Passengers: []booking.PassengerInput{{FirstName: "Ivan", LastName: "Petrov", SeatNumber: "1A"}},
		Payment:    booking.PaymentInput{CardNumber: "4111111111111111", Expiry: "2030-12", CCV: "123"},
	}
	r.bookings.On("CreateBooking", mock.Anything, customer, input).Return(sampleBooking(), nil).Once()

	body, _ := json.Marshal(input)
	w := r.do("POST", "/v1/bookings", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	var got domain.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "FB0A1B2C3D", got.BookingReference)
	r.bookings.AssertExpectations(t)
}

func TestBookingHandler_create_Errors(t *testing.T) {
	taken := &domain.SeatUnavailableError{FlightID: 1, Problems: []domain.SeatProblem{{SeatNumber: "1A", Reason: domain.SeatTaken}}}
	testCases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, resp errorResponse)
	}{
		{
			name: "seat taken", err: taken, status: http.StatusConflict,
			check: func(t *testing.T, resp errorResponse) {
				assert.Equal(t, []domain.SeatProblem{{SeatNumber: "1A", Reason: domain.SeatTaken}}, resp.Seats)
			},
		},
		{name: "invalid payment", err: domain.ErrInvalidPayment, status: http.StatusPaymentRequired},
		{
			name: "validation", err: domain.NewValidationError("passengers", "at least one passenger is required"), status: http.StatusBadRequest,
			check: func(t *testing.T, resp errorResponse) { assert.Equal(t, "passengers", resp.Field) },
		},
		{name: "unknown flight", err: domain.ErrNotFound, status: http.StatusNotFound},
		{
			name: "persistence", err: domain.ErrPersistence, status: http.StatusInternalServerError,
			check: func(t *testing.T, resp errorResponse) { assert.Equal(t, "internal error", resp.Error) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newBookingRouter(t)
			r.bookings.On("CreateBooking", mock.Anything, customer, mock.Anything).Return(nil, tc.err).Once()

			w := r.do("POST", "/v1/bookings", []byte(`{"flight_id":1}`))

			assert.Equal(t, tc.status, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tc.check != nil {
				tc.check(t, resp)
			}
		})
	}
}

func TestBookingHandler_RequiresToken(t *testing.T) {
	r := newBookingRouter(t)
	req := httptest.NewRequest("GET", "/v1/bookings/"+sampleBooking().ID.String(), nil)
	w := httptest.NewRecorder()

	r.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	r.bookings.AssertNotCalled(t, "GetBooking")
}

func TestBookingHandler_get(t *testing.T) {
	r := newBookingRouter(t)
	b := sampleBooking()
	r.bookings.On("GetBooking", mock.Anything, customer, b.ID).Return(b, nil).Once()

	w := r.do("GET", "/v1/bookings/"+b.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = r.do("GET", "/v1/bookings/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	r.bookings.AssertExpectations(t)
}

func TestBookingHandler_cancel(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		already bool
	}{
		{name: "cancelled", status: http.StatusOK},
		{name: "already cancelled", err: domain.ErrAlreadyCancelled, status: http.StatusOK, already: true},
		{name: "not owner", err: domain.ErrForbidden, status: http.StatusForbidden},
		{name: "missing", err: domain.ErrNotFound, status: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newBookingRouter(t)
			b := sampleBooking()
			b.Status = domain.BookingStatusCancelled
			var ret *domain.Booking
			if tc.err == nil || tc.already {
				ret = b
			}
			r.bookings.On("CancelBooking", mock.Anything, customer, b.ID).Return(ret, tc.err).Once()

			w := r.do("POST", "/v1/bookings/"+b.ID.String()+"/cancel", nil)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				var resp cancelResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tc.already, resp.AlreadyCancelled)
				assert.Equal(t, domain.BookingStatusCancelled, resp.Booking.Status)
			}
		})
	}
}

func TestBookingHandler_invoice(t *testing.T) {
	r := newBookingRouter(t)
	b := sampleBooking()
	inv := &invoice.Invoice{BookingID: b.ID, BookingReference: b.BookingReference, TotalCents: 15000}
	r.invoices.On("LineItems", mock.Anything, customer, b.ID).Return(inv, nil).Twice()
	r.invoices.On("RenderPDF", inv).Return([]byte("%PDF-1.3"), nil).Once()

	w := r.do("GET", "/v1/bookings/"+b.ID.String()+"/invoice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_cents":15000`)

	w = r.do("GET", "/v1/bookings/"+b.ID.String()+"/invoice?format=pdf", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
	r.invoices.AssertExpectations(t)
}
