// Package service реализует бизнес-логику сервиса UniEats.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/unieats/unieats-system/internal/model"
	"github.com/unieats/unieats-system/internal/reconcile"
	"github.com/unieats/unieats-system/internal/reports"
	"github.com/unieats/unieats-system/internal/repository"
	"github.com/unieats/unieats-system/internal/revenue"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	reconcile.OrderStore

	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateCafeteria(ctx context.Context, name, location string) (int64, error)
	GetCafeterias(ctx context.Context) ([]model.Cafeteria, error)
	CreateOrder(ctx context.Context, o *model.Order) (int64, error)
	GetOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	GetOrdersForRevenue(ctx context.Context) ([]model.Order, error)
	GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error)
}

// Service содержит бизнес-логику сервиса UniEats.
type Service struct {
	repo          Repository
	reconciler    *reconcile.Reconciler
	reportsClient *reports.Client
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом отчётности.
func NewService(repo Repository, reportsClient *reports.Client) *Service {
	return &Service{
		repo:          repo,
		reconciler:    reconcile.NewReconciler(repo),
		reportsClient: reportsClient,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateCafeteria создаёт новую столовую.
func (s *Service) CreateCafeteria(ctx context.Context, name, location string) (int64, error) {
	return s.repo.CreateCafeteria(ctx, name, location)
}

// GetCafeterias возвращает список столовых.
func (s *Service) GetCafeterias(ctx context.Context) ([]model.Cafeteria, error) {
	return s.repo.GetCafeterias(ctx)
}

// CreateOrder создаёт заказ. Финансовые поля вычисляются один раз здесь,
// поэтому заказ корректен с момента создания и параллельно идущее
// исправление других заказов его не затрагивает.
func (s *Service) CreateOrder(ctx context.Context, userID, cafeteriaID int64, items []model.OrderItem) (*model.Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}

	subtotal := revenue.Round(reconcile.ItemsSubtotal(items))
	b, err := revenue.Calculate(subtotal)
	if err != nil {
		return nil, fmt.Errorf("calculate revenue: %w", err)
	}

	order := &model.Order{
		UserID:               userID,
		CafeteriaID:          cafeteriaID,
		Status:               model.OrderStatusPending,
		Subtotal:             subtotal,
		UserServiceFee:       b.UserServiceFee,
		CafeteriaCommission:  b.CafeteriaCommission,
		AdminRevenue:         b.AdminRevenue,
		TotalAmount:          b.TotalAmount,
		ServiceFeePercentage: revenue.ServiceFeePercentage,
		Items:                items,
	}

	id, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id

	return order, nil
}

// GetOrders возвращает все заказы.
func (s *Service) GetOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.GetOrders(ctx)
}

// UpdateOrderStatus изменяет статус заказа.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	return s.repo.UpdateOrderStatus(ctx, orderID, status)
}

// GetRevenueSummary возвращает агрегаты выручки по неотменённым заказам.
func (s *Service) GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error) {
	return s.repo.GetRevenueSummary(ctx)
}

// AuditCalculations проверяет финансовые поля всех заказов. Только чтение.
func (s *Service) AuditCalculations(ctx context.Context) (*reconcile.AuditReport, error) {
	return s.reconciler.Audit(ctx)
}

// FixCalculations пересчитывает и перезаписывает финансовые поля всех заказов.
func (s *Service) FixCalculations(ctx context.Context) (*reconcile.FixReport, error) {
	return s.reconciler.Fix(ctx)
}

// ValidateConsistency сверяет агрегаты выручки с пересчётом по сырым заказам.
// Срез агрегатов берётся из внешнего сервиса отчётности, а при его
// отсутствии — из собственного агрегирующего запроса к БД.
func (s *Service) ValidateConsistency(ctx context.Context) (*reconcile.ConsistencyReport, error) {
	var snap reconcile.Snapshot

	if s.reportsClient != nil {
		ext, err := s.reportsClient.GetRevenueSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch revenue snapshot: %w", err)
		}
		snap = reconcile.Snapshot{
			TotalRevenue:         ext.TotalRevenue,
			UserServiceFees:      ext.UserServiceFees,
			CafeteriaCommissions: ext.CafeteriaCommissions,
		}
	} else {
		summary, err := s.repo.GetRevenueSummary(ctx)
		if err != nil {
			return nil, fmt.Errorf("read revenue summary: %w", err)
		}
		snap = reconcile.Snapshot{
			TotalRevenue:         summary.TotalRevenue,
			UserServiceFees:      summary.UserServiceFees,
			CafeteriaCommissions: summary.CafeteriaCommissions,
		}
	}

	orders, err := s.repo.GetOrdersForRevenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	return reconcile.ValidateConsistency(orders, snap), nil
}
