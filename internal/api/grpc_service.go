package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	bookingServiceName = "shareit.booking.v1.BookingService"

	methodCreateBooking  = "/" + bookingServiceName + "/CreateBooking"
	methodApproveBooking = "/" + bookingServiceName + "/ApproveBooking"
	methodGetBooking     = "/" + bookingServiceName + "/GetBooking"
	methodListBookings   = "/" + bookingServiceName + "/ListBookings"

	userIDMetadataKey = "x-sharer-user-id"
)

// BookingServiceServer is the RPC surface of the booking engine. Messages
// are google.protobuf.Struct values.
type BookingServiceServer interface {
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ApproveBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(srv BookingServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(BookingServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateBooking", Handler: unaryHandler(methodCreateBooking, BookingServiceServer.CreateBooking)},
		{MethodName: "ApproveBooking", Handler: unaryHandler(methodApproveBooking, BookingServiceServer.ApproveBooking)},
		{MethodName: "GetBooking", Handler: unaryHandler(methodGetBooking, BookingServiceServer.GetBooking)},
		{MethodName: "ListBookings", Handler: unaryHandler(methodListBookings, BookingServiceServer.ListBookings)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shareit/booking/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

// BookingGRPCService adapts domain.BookingService to the RPC surface.
type BookingGRPCService struct {
	bookings        domain.BookingService
	defaultPageSize int
}

var _ BookingServiceServer = (*BookingGRPCService)(nil)

func NewBookingGRPCService(bookings domain.BookingService, defaultPageSize int) *BookingGRPCService {
	if defaultPageSize <= 0 {
		defaultPageSize = models.DefaultPageSize
	}
	return &BookingGRPCService{bookings: bookings, defaultPageSize: defaultPageSize}
}

func (s *BookingGRPCService) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	itemID, ok := intField(fields, "itemId")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "itemId is required")
	}
	start, err := timeField(fields, "start")
	if err != nil {
		return nil, err
	}
	end, err := timeField(fields, "end")
	if err != nil {
		return nil, err
	}

	resp, err := s.bookings.CreateBooking(ctx, userID, models.CreateBookingRequest{ItemID: itemID, Start: start, End: end})
	if err != nil {
		return nil, grpcError(err)
	}
	return bookingStruct(resp)
}

func (s *BookingGRPCService) ApproveBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	bookingID, ok := intField(fields, "bookingId")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "bookingId is required")
	}
	approved, ok := fields["approved"].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "approved is required")
	}

	resp, err := s.bookings.ApproveBooking(ctx, userID, bookingID, approved.BoolValue)
	if err != nil {
		return nil, grpcError(err)
	}
	return bookingStruct(resp)
}

func (s *BookingGRPCService) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	bookingID, ok := intField(req.GetFields(), "bookingId")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "bookingId is required")
	}

	resp, err := s.bookings.GetBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, grpcError(err)
	}
	return bookingStruct(resp)
}

func (s *BookingGRPCService) ListBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	role := models.RoleBooker
	if fields["owner"].GetBoolValue() {
		role = models.RoleOwner
	}
	from, ok := intField(fields, "from")
	if !ok {
		from = 0
	}
	size, ok := intField(fields, "size")
	if !ok {
		size = int64(s.defaultPageSize)
	}

	list, err := s.bookings.ListBookings(ctx, role, userID, fields["state"].GetStringValue(), int(from), int(size))
	if err != nil {
		return nil, grpcError(err)
	}

	values := make([]any, 0, len(list))
	for i := range list {
		values = append(values, bookingMap(&list[i]))
	}
	out, err := structpb.NewStruct(map[string]any{"bookings": values})
	if err != nil {
		return nil, status.Error(codes.Internal, internalMessage)
	}
	return out, nil
}

func userIDFromMetadata(ctx context.Context) (int64, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	raw := first(md.Get(userIDMetadataKey))
	if raw == "" {
		return 0, status.Error(codes.InvalidArgument, userIDMetadataKey+" metadata is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s: %q", userIDMetadataKey, raw)
	}
	return id, nil
}

func intField(fields map[string]*structpb.Value, name string) (int64, bool) {
	v, ok := fields[name].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return int64(v.NumberValue), true
}

func timeField(fields map[string]*structpb.Value, name string) (time.Time, error) {
	raw := fields[name].GetStringValue()
	if raw == "" {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s: %v", name, err)
	}
	return t, nil
}

func bookingMap(b *models.BookingResponse) map[string]any {
	return map[string]any{
		"id":     b.ID,
		"start":  b.Start.UTC().Format(time.RFC3339),
		"end":    b.End.UTC().Format(time.RFC3339),
		"status": string(b.Status),
		"booker": map[string]any{"id": b.Booker.ID, "name": b.Booker.Name},
		"item":   map[string]any{"id": b.Item.ID, "name": b.Item.Name},
	}
}

func bookingStruct(b *models.BookingResponse) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(bookingMap(b))
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode booking: %v", err))
	}
	return out, nil
}
