package bookings_service_api

import (
	"context"
	"errors"

	"github.com/Domenick1991/flightbooking/internal/api/rpc"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/invoice"
	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "airbooking.v1.BookingsService"

// BookingsServiceServer requires an authenticated caller on every method.
type BookingsServiceServer interface {
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInvoicePdf(ctx context.Context, req *structpb.Struct) (*httpbody.HttpBody, error)
}

type Server struct {
	bookings booking.BookingUseCase
	invoices invoice.InvoiceUseCase
}

func NewServer(bookings booking.BookingUseCase, invoices invoice.InvoiceUseCase) *Server {
	return &Server{bookings: bookings, invoices: invoices}
}

func Register(s grpc.ServiceRegistrar, srv BookingsServiceServer) {
	s.RegisterService(&BookingsServiceDesc, srv)
}

type bookingIDRequest struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
}

func (r bookingIDRequest) parse() (uuid.UUID, error) {
	raw := r.ID
	if raw == "" {
		raw = r.BookingID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("id", "must be a UUID")
	}
	return id, nil
}

func (s *Server) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identity, err := rpc.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var in booking.CreateBookingInput
	if err := rpc.FromStruct(req, &in); err != nil {
		return nil, err
	}
	created, err := s.bookings.CreateBooking(ctx, identity, in)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return rpc.ToStruct(map[string]any{"booking": created})
}

func (s *Server) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identity, id, err := s.identityAndID(ctx, req)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetBooking(ctx, identity, id)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return rpc.ToStruct(map[string]any{"booking": b})
}

// CancelBooking succeeds for a booking that was already cancelled and flags it
// in already_cancelled.
func (s *Server) CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identity, id, err := s.identityAndID(ctx, req)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.CancelBooking(ctx, identity, id)
	already := errors.Is(err, domain.ErrAlreadyCancelled)
	if err != nil && !already {
		return nil, rpc.Error(err)
	}
	return rpc.ToStruct(map[string]any{"booking": b, "already_cancelled": already})
}

func (s *Server) GetInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identity, id, err := s.identityAndID(ctx, req)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.LineItems(ctx, identity, id)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return rpc.ToStruct(map[string]any{"invoice": inv})
}

func (s *Server) GetInvoicePdf(ctx context.Context, req *structpb.Struct) (*httpbody.HttpBody, error) {
	identity, id, err := s.identityAndID(ctx, req)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.LineItems(ctx, identity, id)
	if err != nil {
		return nil, rpc.Error(err)
	}
	doc, err := s.invoices.RenderPDF(inv)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return &httpbody.HttpBody{ContentType: "application/pdf", Data: doc}, nil
}

func (s *Server) identityAndID(ctx context.Context, req *structpb.Struct) (identity auth.Identity, id uuid.UUID, err error) {
	if identity, err = rpc.RequireIdentity(ctx); err != nil {
		return
	}
	var in bookingIDRequest
	if err = rpc.FromStruct(req, &in); err != nil {
		return
	}
	if id, err = in.parse(); err != nil {
		err = rpc.Error(err)
	}
	return
}

func unary[Resp any](method string, call func(BookingsServiceServer, context.Context, *structpb.Struct) (Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BookingsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var BookingsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateBooking", Handler: unary("CreateBooking", BookingsServiceServer.CreateBooking)},
		{MethodName: "GetBooking", Handler: unary("GetBooking", BookingsServiceServer.GetBooking)},
		{MethodName: "CancelBooking", Handler: unary("CancelBooking", BookingsServiceServer.CancelBooking)},
		{MethodName: "GetInvoice", Handler: unary("GetInvoice", BookingsServiceServer.GetInvoice)},
		{MethodName: "GetInvoicePdf", Handler: unary("GetInvoicePdf", BookingsServiceServer.GetInvoicePdf)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "airbooking/v1/bookings.proto",
}
