package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/unieats/unieats-system/internal/middleware"
	"github.com/unieats/unieats-system/internal/model"
	"github.com/unieats/unieats-system/internal/reconcile"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	cafeteriaID  int64
	cafeteriaErr error

	cafeterias    []model.Cafeteria
	cafeteriasErr error

	createdOrder   *model.Order
	createOrderErr error

	ordersResp []model.Order
	ordersErr  error

	statusErr error

	summaryResp *model.RevenueSummary
	summaryErr  error

	auditResp *reconcile.AuditReport
	auditErr  error

	fixResp *reconcile.FixReport
	fixErr  error

	consistencyResp *reconcile.ConsistencyReport
	consistencyErr  error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) CreateCafeteria(ctx context.Context, name, location string) (int64, error) {
	return s.cafeteriaID, s.cafeteriaErr
}

func (s *stubService) GetCafeterias(ctx context.Context) ([]model.Cafeteria, error) {
	return s.cafeterias, s.cafeteriasErr
}

func (s *stubService) CreateOrder(ctx context.Context, userID, cafeteriaID int64, items []model.OrderItem) (*model.Order, error) {
	return s.createdOrder, s.createOrderErr
}

func (s *stubService) GetOrders(ctx context.Context) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	return s.statusErr
}

func (s *stubService) GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error) {
	return s.summaryResp, s.summaryErr
}

func (s *stubService) AuditCalculations(ctx context.Context) (*reconcile.AuditReport, error) {
	return s.auditResp, s.auditErr
}

func (s *stubService) FixCalculations(ctx context.Context) (*reconcile.FixReport, error) {
	return s.fixResp, s.fixErr
}

func (s *stubService) ValidateConsistency(ctx context.Context) (*reconcile.ConsistencyReport, error) {
	return s.consistencyResp, s.consistencyErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authCookie(t *testing.T, h *Handler, userID int64) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID)

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	return cookies[0]
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUserID: 42,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestLogin_UnauthorizedOnBadCredentials(t *testing.T) {
	svc := &stubService{
		authErr: errors.New("invalid credentials"),
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubService{
		createdOrder: &model.Order{
			ID:                   10,
			CafeteriaID:          2,
			Status:               model.OrderStatusPending,
			Subtotal:             100.00,
			UserServiceFee:       4.00,
			CafeteriaCommission:  10.00,
			AdminRevenue:         14.00,
			TotalAmount:          104.00,
			ServiceFeePercentage: 4,
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createOrderRequest{
		CafeteriaID: 2,
		Items: []orderItemRequest{
			{Name: "plov", Price: 40.00, Quantity: 2},
			{Name: "salad", Price: 20.00, Quantity: 1},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 10 || resp.TotalAmount != 104.00 || resp.AdminRevenue != 14.00 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateOrder_InvalidItem(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(createOrderRequest{
		CafeteriaID: 2,
		Items: []orderItemRequest{
			{Name: "plov", Price: -5, Quantity: 1},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	svc := &stubService{
		ordersResp: []model.Order{},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetOrders))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	body, _ := json.Marshal(statusRequest{Status: "done"})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/5/status", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestAuditCalculations_JSONResponse(t *testing.T) {
	svc := &stubService{
		auditResp: &reconcile.AuditReport{
			TotalOrders:        5,
			InconsistentOrders: 1,
			IssuesFound:        2,
			Issues: []reconcile.Issue{
				{OrderID: 3, Field: "admin_revenue", Actual: 15, Expected: 14, Difference: 1},
			},
			Summary: reconcile.AuditSummary{AdminRevenueIssues: 1, TotalAmountIssues: 1},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/audit/calculations", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.AuditCalculations))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var report reconcile.AuditReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.TotalOrders != 5 || report.IssuesFound != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestFixCalculations_MessageAndDetails(t *testing.T) {
	svc := &stubService{
		fixResp: &reconcile.FixReport{TotalOrders: 3, FixedCount: 2, ErrorCount: 1},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/audit/fix", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.FixCalculations))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp fixResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message == "" {
		t.Fatalf("message must not be empty")
	}
	if resp.Details == nil || resp.Details.FixedCount != 2 || resp.Details.ErrorCount != 1 {
		t.Fatalf("unexpected details: %+v", resp.Details)
	}
}

func TestValidateConsistency_UpstreamUnavailable(t *testing.T) {
	svc := &stubService{
		consistencyErr: errors.New("fetch revenue snapshot: connection refused"),
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/audit/consistency", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.ValidateConsistency))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}
}

func TestGetRevenueSummary_JSONResponse(t *testing.T) {
	svc := &stubService{
		summaryResp: &model.RevenueSummary{
			TotalRevenue:         134.00,
			UserServiceFees:      24.00,
			CafeteriaCommissions: 110.00,
			OrdersCount:          2,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/revenue/summary", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetRevenueSummary))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var summary model.RevenueSummary
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.TotalRevenue != 134.00 || summary.OrdersCount != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
