package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"mealdrop/internal/auth"
	"mealdrop/internal/domain"
	"mealdrop/internal/service"
	"mealdrop/internal/transport"
)

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator) *grpc.Server {
	server := &Server{svc: svc, auth: authenticator}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.authInterceptor()))

	grpcServer.RegisterService(&authServiceDesc, server)
	grpcServer.RegisterService(&orderServiceDesc, server)
	grpcServer.RegisterService(&restaurantServiceDesc, server)
	grpcServer.RegisterService(&driverServiceDesc, server)
	grpcServer.RegisterService(&adminServiceDesc, server)

	return grpcServer
}

func (s *Server) authInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == "/mealdrop.AuthService/IssueToken" {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		authHeader := ""
		if values := md.Get("authorization"); len(values) > 0 {
			authHeader = values[0]
		}
		token := auth.ExtractBearerToken(authHeader)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		claims, err := s.auth.ParseToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		ctx = auth.ContextWithClaims(ctx, claims)
		return handler(ctx, req)
	}
}

func (s *Server) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.UserID == "" || !domain.ValidateRole(req.Role) {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	token, exp, err := s.auth.IssueToken(req.UserID, req.Role, req.RestaurantID)
	if err != nil {
		return nil, status.Error(codes.Internal, "token error")
	}
	return &TokenResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}, nil
}

func (s *Server) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*transport.OrderResponse, error) {
	claims, err := requireRole(ctx, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}
	cmd := service.PlaceOrderCommand{
		CustomerID:      claims.Subject,
		RestaurantID:    req.RestaurantID,
		DeliveryAddress: req.DeliveryAddress,
		DiscountCents:   req.DiscountCents,
		Notes:           req.Notes,
	}
	if req.Dropoff != nil {
		cmd.Dropoff = &domain.Location{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng}
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, service.OrderItemInput{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		})
	}
	order, err := s.svc.PlaceOrder(ctx, cmd)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *OrderIDRequest) (*transport.OrderResponse, error) {
	claims, err := requireRole(ctx, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}
	order, err := s.svc.CancelOrder(ctx, claims.Subject, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) GetOrder(ctx context.Context, req *OrderIDRequest) (*transport.OrderViewResponse, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	requesterID := claims.Subject
	if claims.Role == domain.RoleRestaurant {
		requesterID = restaurantFor(claims)
	}
	view, err := s.svc.GetOrderView(ctx, requesterID, claims.Role, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrderView(view)
	return &resp, nil
}

func (s *Server) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	filter := service.OrderFilter{Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" {
		st := domain.OrderStatus(req.Status)
		filter.Status = &st
	}
	switch claims.Role {
	case domain.RoleCustomer:
		filter.CustomerID = claims.Subject
	case domain.RoleRestaurant:
		filter.RestaurantID = restaurantFor(claims)
	case domain.RoleAdmin:
		filter.RestaurantID = req.RestaurantID
		filter.CustomerID = req.CustomerID
	default:
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}
	orders, err := s.svc.ListOrders(ctx, filter)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &ListOrdersResponse{Orders: make([]transport.OrderResponse, 0, len(orders))}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, transport.FromOrder(order))
	}
	return resp, nil
}

func (s *Server) AcceptOrder(ctx context.Context, req *OrderIDRequest) (*transport.OrderResponse, error) {
	claims, err := requireRole(ctx, domain.RoleRestaurant)
	if err != nil {
		return nil, err
	}
	order, err := s.svc.RestaurantAccept(ctx, restaurantFor(claims), req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) RejectOrder(ctx context.Context, req *RejectOrderRequest) (*transport.OrderResponse, error) {
	claims, err := requireRole(ctx, domain.RoleRestaurant)
	if err != nil {
		return nil, err
	}
	order, err := s.svc.RestaurantReject(ctx, restaurantFor(claims), req.OrderID, req.Reason)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) MarkPreparing(ctx context.Context, req *OrderIDRequest) (*transport.OrderResponse, error) {
	claims, err := requireRole(ctx, domain.RoleRestaurant)
	if err != nil {
		return nil, err
	}
	order, err := s.svc.MarkPreparing(ctx, restaurantFor(claims), req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) MarkReady(ctx context.Context, req *OrderIDRequest) (*MarkReadyResponse, error) {
	claims, err := requireRole(ctx, domain.RoleRestaurant)
	if err != nil {
		return nil, err
	}
	result, err := s.svc.MarkReady(ctx, restaurantFor(claims), req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &MarkReadyResponse{
		Order:             transport.FromOrder(result.Order),
		NoDriverAvailable: result.Task == nil,
	}
	if result.Task != nil {
		task := transport.FromTask(result.Task)
		resp.Task = &task
	}
	return resp, nil
}

func (s *Server) GoOnline(ctx context.Context, _ *Empty) (*transport.AvailabilityResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	av, err := s.svc.GoOnline(ctx, claims.Subject)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromAvailability(av)
	return &resp, nil
}

func (s *Server) GoOffline(ctx context.Context, _ *Empty) (*transport.AvailabilityResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	av, err := s.svc.GoOffline(ctx, claims.Subject)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromAvailability(av)
	return &resp, nil
}

func (s *Server) ReportLocation(ctx context.Context, req *LocationRequest) (*transport.LocationPingResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	loc, err := s.svc.ReportLocation(ctx, service.ReportLocationCommand{
		DriverID:  claims.Subject,
		Lat:       req.Lat,
		Lng:       req.Lng,
		AccuracyM: req.AccuracyM,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromLocation(loc)
	return &resp, nil
}

func (s *Server) CurrentTask(ctx context.Context, _ *Empty) (*transport.TaskResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	task, err := s.svc.DriverCurrentTask(ctx, claims.Subject)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromTask(task)
	return &resp, nil
}

func (s *Server) AcceptTask(ctx context.Context, req *TaskIDRequest) (*transport.TaskResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	task, err := s.svc.AcceptTask(ctx, claims.Subject, req.TaskID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromTask(task)
	return &resp, nil
}

func (s *Server) RejectTask(ctx context.Context, req *RejectTaskRequest) (*RejectTaskResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	result, err := s.svc.RejectTask(ctx, claims.Subject, req.TaskID, req.Reason)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &RejectTaskResponse{Task: transport.FromTask(result.Task)}
	if result.Reassigned != nil {
		task := transport.FromTask(result.Reassigned)
		resp.Reassigned = &task
	}
	return resp, nil
}

func (s *Server) MarkPickedUp(ctx context.Context, req *TaskIDRequest) (*transport.TaskResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	task, err := s.svc.MarkPickedUp(ctx, claims.Subject, req.TaskID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromTask(task)
	return &resp, nil
}

func (s *Server) MarkDelivered(ctx context.Context, req *TaskIDRequest) (*transport.TaskResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	task, err := s.svc.MarkDelivered(ctx, claims.Subject, req.TaskID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromTask(task)
	return &resp, nil
}

func (s *Server) ListEarnings(ctx context.Context, _ *Empty) (*EarningsResponse, error) {
	claims, err := requireRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	earnings, err := s.svc.DriverEarnings(ctx, claims.Subject)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &EarningsResponse{Earnings: make([]transport.EarningResponse, 0, len(earnings))}
	for i := range earnings {
		resp.Earnings = append(resp.Earnings, transport.FromEarning(&earnings[i]))
		resp.TotalCents += earnings[i].AmountCents
	}
	return resp, nil
}

func (s *Server) DispatchOrder(ctx context.Context, req *OrderIDRequest) (*transport.TaskResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	task, err := s.svc.AssignDriver(ctx, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromTask(task)
	return &resp, nil
}

func (s *Server) ListDrivers(ctx context.Context, _ *Empty) (*ListDriversResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	views, err := s.svc.ListDriverViews(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &ListDriversResponse{Drivers: make([]transport.DriverViewResponse, 0, len(views))}
	for _, view := range views {
		resp.Drivers = append(resp.Drivers, transport.FromDriverView(view))
	}
	return resp, nil
}

func (s *Server) GrantBonus(ctx context.Context, req *BonusRequest) (*transport.EarningResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	earning, err := s.svc.GrantBonus(ctx, req.DriverID, req.OrderID, req.AmountCents, req.Description)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromEarning(earning)
	return &resp, nil
}

func (s *Server) Sweep(ctx context.Context, _ *Empty) (*SweepResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	n, err := s.svc.SweepTimedOutOrders(ctx, 0)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &SweepResponse{Cancelled: n}, nil
}
