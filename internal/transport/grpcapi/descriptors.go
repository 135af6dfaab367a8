package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"mealdrop/internal/transport"
)

type AuthService interface {
	IssueToken(context.Context, *TokenRequest) (*TokenResponse, error)
}

type OrderService interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*transport.OrderResponse, error)
	CancelOrder(context.Context, *OrderIDRequest) (*transport.OrderResponse, error)
	GetOrder(context.Context, *OrderIDRequest) (*transport.OrderViewResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

type RestaurantService interface {
	AcceptOrder(context.Context, *OrderIDRequest) (*transport.OrderResponse, error)
	RejectOrder(context.Context, *RejectOrderRequest) (*transport.OrderResponse, error)
	MarkPreparing(context.Context, *OrderIDRequest) (*transport.OrderResponse, error)
	MarkReady(context.Context, *OrderIDRequest) (*MarkReadyResponse, error)
}

type DriverService interface {
	GoOnline(context.Context, *Empty) (*transport.AvailabilityResponse, error)
	GoOffline(context.Context, *Empty) (*transport.AvailabilityResponse, error)
	ReportLocation(context.Context, *LocationRequest) (*transport.LocationPingResponse, error)
	CurrentTask(context.Context, *Empty) (*transport.TaskResponse, error)
	AcceptTask(context.Context, *TaskIDRequest) (*transport.TaskResponse, error)
	RejectTask(context.Context, *RejectTaskRequest) (*RejectTaskResponse, error)
	MarkPickedUp(context.Context, *TaskIDRequest) (*transport.TaskResponse, error)
	MarkDelivered(context.Context, *TaskIDRequest) (*transport.TaskResponse, error)
	ListEarnings(context.Context, *Empty) (*EarningsResponse, error)
}

type AdminService interface {
	DispatchOrder(context.Context, *OrderIDRequest) (*transport.TaskResponse, error)
	ListDrivers(context.Context, *Empty) (*ListDriversResponse, error)
	GrantBonus(context.Context, *BonusRequest) (*transport.EarningResponse, error)
	Sweep(context.Context, *Empty) (*SweepResponse, error)
}

// unary builds the grpc.MethodDesc handler for a request type, threading the
// server interceptor the way generated code does.
func unary[Req any](fullMethod string, invoke func(*Server, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return invoke(srv.(*Server), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return invoke(srv.(*Server), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: "mealdrop.AuthService",
	HandlerType: (*AuthService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IssueToken", Handler: unary("/mealdrop.AuthService/IssueToken",
			func(s *Server, ctx context.Context, req *TokenRequest) (any, error) { return s.IssueToken(ctx, req) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mealdrop.proto",
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: "mealdrop.OrderService",
	HandlerType: (*OrderService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: unary("/mealdrop.OrderService/PlaceOrder",
			func(s *Server, ctx context.Context, req *PlaceOrderRequest) (any, error) { return s.PlaceOrder(ctx, req) })},
		{MethodName: "CancelOrder", Handler: unary("/mealdrop.OrderService/CancelOrder",
			func(s *Server, ctx context.Context, req *OrderIDRequest) (any, error) { return s.CancelOrder(ctx, req) })},
		{MethodName: "GetOrder", Handler: unary("/mealdrop.OrderService/GetOrder",
			func(s *Server, ctx context.Context, req *OrderIDRequest) (any, error) { return s.GetOrder(ctx, req) })},
		{MethodName: "ListOrders", Handler: unary("/mealdrop.OrderService/ListOrders",
			func(s *Server, ctx context.Context, req *ListOrdersRequest) (any, error) { return s.ListOrders(ctx, req) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mealdrop.proto",
}

var restaurantServiceDesc = grpc.ServiceDesc{
	ServiceName: "mealdrop.RestaurantService",
	HandlerType: (*RestaurantService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AcceptOrder", Handler: unary("/mealdrop.RestaurantService/AcceptOrder",
			func(s *Server, ctx context.Context, req *OrderIDRequest) (any, error) { return s.AcceptOrder(ctx, req) })},
		{MethodName: "RejectOrder", Handler: unary("/mealdrop.RestaurantService/RejectOrder",
			func(s *Server, ctx context.Context, req *RejectOrderRequest) (any, error) { return s.RejectOrder(ctx, req) })},
		{MethodName: "MarkPreparing", Handler: unary("/mealdrop.RestaurantService/MarkPreparing",
			func(s *Server, ctx context.Context, req *OrderIDRequest) (any, error) { return s.MarkPreparing(ctx, req) })},
		{MethodName: "MarkReady", Handler: unary("/mealdrop.RestaurantService/MarkReady",
			func(s *Server, ctx context.Context, req *OrderIDRequest) (any, error) { return s.MarkReady(ctx, req) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mealdrop.proto",
}

var driverServiceDesc = grpc.ServiceDesc{
	ServiceName: "mealdrop.DriverService",
	HandlerType: (*DriverService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GoOnline", Handler: unary("/mealdrop.DriverService/GoOnline",
			func(s *Server, ctx context.Context, req *Empty) (any, error) { return s.GoOnline(ctx, req) })},
		{MethodName: "GoOffline", Handler: unary("/mealdrop.DriverService/GoOffline",
			func(s *Server, ctx context.Context, req *Empty) (any, error) { return s.GoOffline(ctx, req) })},
		{MethodName: "ReportLocation", Handler: unary("/mealdrop.DriverService/ReportLocation",
			func(s *Server, ctx context.Context, req *LocationRequest) (any, error) { return s.ReportLocation(ctx, req) })},
		{MethodName: "CurrentTask", Handler: unary("/mealdrop.DriverService/CurrentTask",
			func(s *Server, ctx context.Context, req *Empty) (any, error) { return s.CurrentTask(ctx, req) })},
		{MethodName: "AcceptTask", Handler: unary("/mealdrop.DriverService/AcceptTask",
			func(s *Server, ctx context.Context, req *TaskIDRequest) (any, error) { return s.AcceptTask(ctx, req) })},
		{MethodName: "RejectTask", Handler: unary("/mealdrop.DriverService/RejectTask",
			func(s *Server, ctx context.Context, req *RejectTaskRequest) (any, error) { return s.RejectTask(ctx, req) })},
		{MethodName: "MarkPickedUp", Handler: unary("/mealdrop.DriverService/MarkPickedUp",
			func(s *Server, ctx context.Context, req *TaskIDRequest) (any, error) { return s.MarkPickedUp(ctx, req) })},
		{MethodName: "MarkDelivered", Handler: unary("/mealdrop.DriverService/MarkDelivered",
			func(s *Server, ctx context.Context, req *TaskIDRequest) (any, error) { return s.MarkDelivered(ctx, req) })},
		{MethodName: "ListEarnings", Handler: unary("/mealdrop.DriverService/ListEarnings",
			func(s *Server, ctx context.Context, req *Empty) (any, error) { return s.ListEarnings(ctx, req) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mealdrop.proto",
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: "mealdrop.AdminService",
	HandlerType: (*AdminService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DispatchOrder", Handler: unary("/mealdrop.AdminService/DispatchOrder",
			func(s *Server, ctx context.Context, req *OrderIDRequest) (any, error) { return s.DispatchOrder(ctx, req) })},
		{MethodName: "ListDrivers", Handler: unary("/mealdrop.AdminService/ListDrivers",
			func(s *Server, ctx context.Context, req *Empty) (any, error) { return s.ListDrivers(ctx, req) })},
		{MethodName: "GrantBonus", Handler: unary("/mealdrop.AdminService/GrantBonus",
			func(s *Server, ctx context.Context, req *BonusRequest) (any, error) { return s.GrantBonus(ctx, req) })},
		{MethodName: "Sweep", Handler: unary("/mealdrop.AdminService/Sweep",
			func(s *Server, ctx context.Context, req *Empty) (any, error) { return s.Sweep(ctx, req) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mealdrop.proto",
}
