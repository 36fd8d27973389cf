package flights_service_api

import (
	"context"

	"github.com/Domenick1991/flightbooking/internal/api/rpc"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "airbooking.v1.FlightsService"

// FlightsServiceServer is the read side of the catalogue. Requests and
// responses are JSON-shaped structpb messages.
type FlightsServiceServer interface {
	ListFlights(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetFlight(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListSeats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	flights   flights.FlightUseCase
	inventory inventory.InventoryUseCase
}

func NewServer(flights flights.FlightUseCase, inventory inventory.InventoryUseCase) *Server {
	return &Server{flights: flights, inventory: inventory}
}

func Register(s grpc.ServiceRegistrar, srv FlightsServiceServer) {
	s.RegisterService(&FlightsServiceDesc, srv)
}

type getFlightRequest struct {
	ID int64 `json:"id"`
}

type listSeatsRequest struct {
	FlightID int64 `json:"flight_id"`
}

func (s *Server) ListFlights(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.flights.List(ctx)
	if err != nil {
		return nil, rpc.Error(err)
	}
	if list == nil {
		list = []domain.Flight{}
	}
	return rpc.ToStruct(map[string]any{"flights": list})
}

func (s *Server) GetFlight(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in getFlightRequest
	if err := rpc.FromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.ID <= 0 {
		return nil, rpc.Error(domain.NewValidationError("id", "must be positive"))
	}
	flight, err := s.flights.GetByID(ctx, in.ID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return rpc.ToStruct(map[string]any{"flight": flight})
}

func (s *Server) ListSeats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listSeatsRequest
	if err := rpc.FromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.FlightID <= 0 {
		return nil, rpc.Error(domain.NewValidationError("flight_id", "must be positive"))
	}
	if _, err := s.flights.GetByID(ctx, in.FlightID); err != nil {
		return nil, rpc.Error(err)
	}
	seats, err := s.inventory.GetSeats(ctx, in.FlightID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	if seats == nil {
		seats = []domain.Seat{}
	}
	return rpc.ToStruct(map[string]any{"seats": seats})
}

func unaryHandler(method string, call func(FlightsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FlightsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FlightsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var FlightsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FlightsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListFlights", Handler: unaryHandler("ListFlights", FlightsServiceServer.ListFlights)},
		{MethodName: "GetFlight", Handler: unaryHandler("GetFlight", FlightsServiceServer.GetFlight)},
		{MethodName: "ListSeats", Handler: unaryHandler("ListSeats", FlightsServiceServer.ListSeats)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "airbooking/v1/flights.proto",
}
