package flights_service_api

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	departure := time.Date(2026, 11, 3, 8, 30, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	store.SeedFlight(domain.Flight{
		ID: 7, FlightNumber: "SU1234", FromAirport: "SVO", ToAirport: "LED",
		DepartureTime: departure, ArrivalTime: departure.Add(90 * time.Minute),
		BaseFareCents: 10000, Status: domain.FlightStatusScheduled,
	}, []domain.Seat{
		{FlightID: 7, SeatNumber: "1A", Class: domain.SeatClassBusiness, PriceModifierCents: 5000, IsAvailable: true},
		{FlightID: 7, SeatNumber: "10A", Class: domain.SeatClassEconomy, IsAvailable: true},
	})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewServer(flights.NewFlightService(store, nil, logger), inventory.NewInventoryService(store, logger)))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	out := &structpb.Struct{}
	err = conn.Invoke(context.Background(), "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func TestListFlights(t *testing.T) {
	conn := newTestConn(t)

	resp, err := invoke(t, conn, "ListFlights", nil)
	require.NoError(t, err)
	list := resp.Fields["flights"].GetListValue().GetValues()
	require.Len(t, list, 1)
	assert.Equal(t, "SU1234", list[0].GetStructValue().Fields["flight_number"].GetStringValue())
}

func TestGetFlight(t *testing.T) {
	conn := newTestConn(t)

	resp, err := invoke(t, conn, "GetFlight", map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, "LED", resp.Fields["flight"].GetStructValue().Fields["to_airport"].GetStringValue())

	_, err = invoke(t, conn, "GetFlight", map[string]any{"id": 99})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(t, conn, "GetFlight", map[string]any{"id": 0})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListSeats(t *testing.T) {
	conn := newTestConn(t)

	resp, err := invoke(t, conn, "ListSeats", map[string]any{"flight_id": 7})
	require.NoError(t, err)
	seats := resp.Fields["seats"].GetListValue().GetValues()
	require.Len(t, seats, 2)
	assert.Equal(t, "1A", seats[0].GetStructValue().Fields["seat_number"].GetStringValue())
	assert.True(t, seats[0].GetStructValue().Fields["is_available"].GetBoolValue())

	_, err = invoke(t, conn, "ListSeats", map[string]any{"flight_id": 99})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
