// Package handler содержит HTTP-обработчики API сервиса UniEats.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unieats/unieats-system/internal/middleware"
	"github.com/unieats/unieats-system/internal/model"
	"github.com/unieats/unieats-system/internal/reconcile"
	"github.com/unieats/unieats-system/internal/repository"
	"github.com/unieats/unieats-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	CreateCafeteria(ctx context.Context, name, location string) (int64, error)
	GetCafeterias(ctx context.Context) ([]model.Cafeteria, error)
	CreateOrder(ctx context.Context, userID, cafeteriaID int64, items []model.OrderItem) (*model.Order, error)
	GetOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error)
	AuditCalculations(ctx context.Context) (*reconcile.AuditReport, error)
	FixCalculations(ctx context.Context) (*reconcile.FixReport, error)
	ValidateConsistency(ctx context.Context) (*reconcile.ConsistencyReport, error)
}

// Handler реализует HTTP-обработчики API сервиса UniEats.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type cafeteriaRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type cafeteriaResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	IsActive bool   `json:"is_active"`
}

// CreateCafeteria создаёт новую столовую.
func (h *Handler) CreateCafeteria(w http.ResponseWriter, r *http.Request) {
	var req cafeteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateCafeteria(r.Context(), req.Name, req.Location)
	if err != nil {
		h.logger.Error("create cafeteria error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(cafeteriaResponse{ID: id, Name: req.Name, Location: req.Location, IsActive: true})
}

// GetCafeterias возвращает список столовых.
func (h *Handler) GetCafeterias(w http.ResponseWriter, r *http.Request) {
	cafeterias, err := h.service.GetCafeterias(r.Context())
	if err != nil {
		h.logger.Error("get cafeterias error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]cafeteriaResponse, 0, len(cafeterias))
	for _, c := range cafeterias {
		resp = append(resp, cafeteriaResponse{
			ID:       c.ID,
			Name:     c.Name,
			Location: c.Location,
			IsActive: c.IsActive,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type orderItemRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type createOrderRequest struct {
	CafeteriaID int64              `json:"cafeteria_id"`
	Items       []orderItemRequest `json:"items"`
}

type orderResponse struct {
	ID                   int64   `json:"id"`
	CafeteriaID          int64   `json:"cafeteria_id"`
	Status               string  `json:"status"`
	Subtotal             float64 `json:"subtotal"`
	UserServiceFee       float64 `json:"user_service_fee"`
	CafeteriaCommission  float64 `json:"cafeteria_commission"`
	AdminRevenue         float64 `json:"admin_revenue"`
	TotalAmount          float64 `json:"total_amount"`
	ServiceFeePercentage float64 `json:"service_fee_percentage"`
	CreatedAt            string  `json:"created_at,omitempty"`
}

func toOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:                   o.ID,
		CafeteriaID:          o.CafeteriaID,
		Status:               string(o.Status),
		Subtotal:             o.Subtotal,
		UserServiceFee:       o.UserServiceFee,
		CafeteriaCommission:  o.CafeteriaCommission,
		AdminRevenue:         o.AdminRevenue,
		TotalAmount:          o.TotalAmount,
		ServiceFeePercentage: o.ServiceFeePercentage,
	}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

// CreateOrder принимает новый заказ от текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.CafeteriaID <= 0 || len(req.Items) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if !validation.IsValidOrderItem(it.Name, it.Price, it.Quantity) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		items = append(items, model.OrderItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.CafeteriaID, items)
	if err != nil {
		if errors.Is(err, repository.ErrCafeteriaNotFound) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toOrderResponse(*order))
}

// GetOrders возвращает список всех заказов.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetOrders(r.Context())
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus изменяет статус заказа. Финансовые поля не затрагиваются.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidOrderStatus(req.Status) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	err = h.service.UpdateOrderStatus(r.Context(), orderID, model.OrderStatus(req.Status))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update order status error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetRevenueSummary возвращает агрегаты выручки по неотменённым заказам.
func (h *Handler) GetRevenueSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetRevenueSummary(r.Context())
	if err != nil {
		h.logger.Error("get revenue summary error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// AuditCalculations запускает проверку финансовых полей всех заказов.
func (h *Handler) AuditCalculations(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AuditCalculations(r.Context())
	if err != nil {
		h.logger.Error("audit calculations error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type fixResponse struct {
	Message string               `json:"message"`
	Details *reconcile.FixReport `json:"details"`
}

// FixCalculations запускает пересчёт и перезапись финансовых полей всех заказов.
func (h *Handler) FixCalculations(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.FixCalculations(r.Context())
	if err != nil {
		h.logger.Error("fix calculations error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.logger.Info("fix calculations finished",
		zap.Int("total", report.TotalOrders),
		zap.Int("fixed", report.FixedCount),
		zap.Int("errors", report.ErrorCount),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(fixResponse{
		Message: "financial fields recalculated",
		Details: report,
	}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// ValidateConsistency сверяет агрегаты выручки с пересчётом по сырым заказам.
func (h *Handler) ValidateConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ValidateConsistency(r.Context())
	if err != nil {
		h.logger.Error("validate consistency error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
