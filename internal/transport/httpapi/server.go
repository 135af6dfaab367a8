package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mealdrop/internal/auth"
	"mealdrop/internal/domain"
	"mealdrop/internal/service"
	"mealdrop/internal/transport"
)

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator) http.Handler {
	s := &Server{svc: svc, auth: authenticator}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/auth/token", s.handleIssueToken)

	r.Route("/orders", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleCustomer))
		r.Post("/", s.handlePlaceOrder)
		r.Get("/", s.handleCustomerListOrders)
		r.Get("/{id}", s.handleGetOrder)
		r.Post("/{id}/cancel", s.handleCancelOrder)
	})

	r.Route("/restaurant", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleRestaurant))
		r.Get("/orders", s.handleRestaurantListOrders)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Post("/orders/{id}/accept", s.handleRestaurantAccept)
		r.Post("/orders/{id}/reject", s.handleRestaurantReject)
		r.Post("/orders/{id}/preparing", s.handleMarkPreparing)
		r.Post("/orders/{id}/ready", s.handleMarkReady)
	})

	r.Route("/driver", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleDriver))
		r.Post("/online", s.handleGoOnline)
		r.Post("/offline", s.handleGoOffline)
		r.Post("/location", s.handleReportLocation)
		r.Get("/task", s.handleDriverCurrentTask)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Post("/tasks/{id}/accept", s.handleAcceptTask)
		r.Post("/tasks/{id}/reject", s.handleRejectTask)
		r.Post("/tasks/{id}/pickup", s.handleMarkPickedUp)
		r.Post("/tasks/{id}/deliver", s.handleMarkDelivered)
		r.Get("/earnings", s.handleDriverEarnings)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleAdmin))
		r.Get("/orders", s.handleAdminListOrders)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Post("/orders/{id}/dispatch", s.handleAdminDispatch)
		r.Get("/drivers", s.handleAdminListDrivers)
		r.Post("/drivers/{id}/bonus", s.handleAdminGrantBonus)
		r.Post("/sweep", s.handleAdminSweep)
	})

	return r
}

func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			claims, err := s.auth.ParseToken(token)
			if err != nil {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			if claims.Role != role {
				writeError(w, domain.ErrForbidden)
				return
			}
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		Role         string `json:"role"`
		RestaurantID string `json:"restaurant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	if req.UserID == "" || !domain.ValidateRole(req.Role) {
		writeError(w, domain.ErrInvalid)
		return
	}
	token, exp, err := s.auth.IssueToken(req.UserID, req.Role, req.RestaurantID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
	})
}

type placeOrderRequest struct {
	RestaurantID    string              `json:"restaurant_id"`
	Items           []placeOrderItem    `json:"items"`
	DeliveryAddress string              `json:"delivery_address"`
	Dropoff         *transport.Location `json:"dropoff"`
	DiscountCents   int64               `json:"discount_cents"`
	Notes           string              `json:"notes"`
}

type placeOrderItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
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
	order, err := s.svc.PlaceOrder(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromOrder(order))
}

func (s *Server) handleCustomerListOrders(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	filter := listFilter(r)
	filter.CustomerID = claims.Subject
	s.respondOrderList(w, r, filter)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	requesterID := claims.Subject
	if claims.Role == domain.RoleRestaurant {
		requesterID = restaurantID(claims)
	}
	view, err := s.svc.GetOrderView(r.Context(), requesterID, claims.Role, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrderView(view))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	order, err := s.svc.CancelOrder(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleRestaurantListOrders(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	filter := listFilter(r)
	filter.RestaurantID = restaurantID(claims)
	s.respondOrderList(w, r, filter)
}

func (s *Server) handleRestaurantAccept(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	order, err := s.svc.RestaurantAccept(r.Context(), restaurantID(claims), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleRestaurantReject(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalid)
			return
		}
	}
	order, err := s.svc.RestaurantReject(r.Context(), restaurantID(claims), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleMarkPreparing(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	order, err := s.svc.MarkPreparing(r.Context(), restaurantID(claims), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	result, err := s.svc.MarkReady(r.Context(), restaurantID(claims), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"order":               transport.FromOrder(result.Order),
		"no_driver_available": result.Task == nil,
	}
	if result.Task != nil {
		resp["task"] = transport.FromTask(result.Task)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGoOnline(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	av, err := s.svc.GoOnline(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromAvailability(av))
}

func (s *Server) handleGoOffline(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	av, err := s.svc.GoOffline(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromAvailability(av))
}

func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req struct {
		Lat       float64  `json:"lat"`
		Lng       float64  `json:"lng"`
		AccuracyM *float64 `json:"accuracy_m"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	loc, err := s.svc.ReportLocation(r.Context(), service.ReportLocationCommand{
		DriverID:  claims.Subject,
		Lat:       req.Lat,
		Lng:       req.Lng,
		AccuracyM: req.AccuracyM,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromLocation(loc))
}

func (s *Server) handleDriverCurrentTask(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	task, err := s.svc.DriverCurrentTask(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTask(task))
}

func (s *Server) handleAcceptTask(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	task, err := s.svc.AcceptTask(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTask(task))
}

func (s *Server) handleRejectTask(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalid)
			return
		}
	}
	result, err := s.svc.RejectTask(r.Context(), claims.Subject, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"task": transport.FromTask(result.Task)}
	if result.Reassigned != nil {
		resp["reassigned"] = transport.FromTask(result.Reassigned)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkPickedUp(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	task, err := s.svc.MarkPickedUp(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTask(task))
}

func (s *Server) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	task, err := s.svc.MarkDelivered(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTask(task))
}

func (s *Server) handleDriverEarnings(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	earnings, err := s.svc.DriverEarnings(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.EarningResponse, 0, len(earnings))
	var total int64
	for i := range earnings {
		resp = append(resp, transport.FromEarning(&earnings[i]))
		total += earnings[i].AmountCents
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"earnings":    resp,
		"total_cents": total,
	})
}

func (s *Server) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	filter.RestaurantID = r.URL.Query().Get("restaurant_id")
	filter.CustomerID = r.URL.Query().Get("customer_id")
	s.respondOrderList(w, r, filter)
}

func (s *Server) handleAdminDispatch(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.AssignDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTask(task))
}

func (s *Server) handleAdminListDrivers(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.ListDriverViews(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.DriverViewResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, transport.FromDriverView(view))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminGrantBonus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID     *string `json:"order_id"`
		AmountCents int64   `json:"amount_cents"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	earning, err := s.svc.GrantBonus(r.Context(), chi.URLParam(r, "id"), req.OrderID, req.AmountCents, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromEarning(earning))
}

func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.SweepTimedOutOrders(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": n})
}

func (s *Server) respondOrderList(w http.ResponseWriter, r *http.Request, filter service.OrderFilter) {
	orders, err := s.svc.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.OrderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, transport.FromOrder(order))
	}
	respondJSON(w, http.StatusOK, resp)
}

func listFilter(r *http.Request) service.OrderFilter {
	var filter service.OrderFilter
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		st := domain.OrderStatus(statusParam)
		filter.Status = &st
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return filter
}

func mustClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}

// restaurantID resolves which restaurant a staff token acts for. Tokens
// minted without an explicit restaurant act for a restaurant with the same
// ID as the user.
func restaurantID(claims *auth.Claims) string {
	if claims.RestaurantID != "" {
		return claims.RestaurantID
	}
	return claims.Subject
}
