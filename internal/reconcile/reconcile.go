// Package reconcile реализует аудит и восстановление финансовых полей заказов.
package reconcile

import (
	"context"
	"fmt"

	"github.com/unieats/unieats-system/internal/model"
	"github.com/unieats/unieats-system/internal/revenue"
)

// IssuePreviewLimit ограничивает число расхождений, попадающих в отчёт аудита.
// Полное количество всегда доступно в IssuesFound.
const IssuePreviewLimit = 10

// OrderStore описывает контракт хранилища заказов, используемый сверкой.
type OrderStore interface {
	// GetOrdersForAudit возвращает заказы с уже вычисленными финансовыми
	// полями. Заказы без admin_revenue ещё не рассчитаны и не проверяются.
	GetOrdersForAudit(ctx context.Context) ([]model.Order, error)
	// GetOrdersWithItems возвращает все заказы вместе с их позициями.
	GetOrdersWithItems(ctx context.Context) ([]model.Order, error)
	// UpdateOrderFinancials перезаписывает subtotal и четыре производных
	// поля заказа. Никакие другие поля заказа не затрагиваются.
	UpdateOrderFinancials(ctx context.Context, orderID int64, subtotal float64, b revenue.Breakdown) error
}

// Issue описывает одно расхождение между сохранённым и пересчитанным значением.
type Issue struct {
	OrderID    int64   `json:"order_id"`
	Field      string  `json:"field"`
	Actual     float64 `json:"actual"`
	Expected   float64 `json:"expected"`
	Difference float64 `json:"difference"`
}

// AuditSummary содержит счётчики расхождений по каждому финансовому полю.
type AuditSummary struct {
	ServiceFeeIssues   int `json:"service_fee_issues"`
	CommissionIssues   int `json:"commission_issues"`
	AdminRevenueIssues int `json:"admin_revenue_issues"`
	TotalAmountIssues  int `json:"total_amount_issues"`
}

// AuditReport содержит результат проверки всех заказов.
type AuditReport struct {
	TotalOrders        int          `json:"total_orders"`
	InconsistentOrders int          `json:"inconsistent_orders"`
	IssuesFound        int          `json:"issues_found"`
	Issues             []Issue      `json:"issues"`
	Summary            AuditSummary `json:"summary"`
}

// FixReport содержит результат восстановления финансовых полей.
type FixReport struct {
	TotalOrders int `json:"total_orders"`
	FixedCount  int `json:"fixed_count"`
	ErrorCount  int `json:"error_count"`
}

// Reconciler выполняет аудит и исправление финансовых полей заказов.
type Reconciler struct {
	store OrderStore
}

// NewReconciler создаёт сверку поверх указанного хранилища заказов.
func NewReconciler(store OrderStore) *Reconciler {
	return &Reconciler{store: store}
}

// Audit пересчитывает поля каждого заказа и собирает расхождения.
// Операция только читает данные и безопасна в любой момент.
func (r *Reconciler) Audit(ctx context.Context) (*AuditReport, error) {
	orders, err := r.store.GetOrdersForAudit(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	report := &AuditReport{
		TotalOrders: len(orders),
		Issues:      []Issue{},
	}

	for _, o := range orders {
		expected, err := revenue.Calculate(o.Subtotal)
		if err != nil {
			// Повреждённый subtotal: заказ невозможно проверить по полям,
			// он попадает в отчёт одной записью и не прерывает аудит.
			report.InconsistentOrders++
			report.IssuesFound++
			if len(report.Issues) < IssuePreviewLimit {
				report.Issues = append(report.Issues, Issue{
					OrderID: o.ID,
					Field:   "subtotal",
					Actual:  o.Subtotal,
				})
			}
			continue
		}

		checks := []struct {
			field    string
			actual   float64
			expected float64
			counter  *int
		}{
			{"user_service_fee", o.UserServiceFee, expected.UserServiceFee, &report.Summary.ServiceFeeIssues},
			{"cafeteria_commission", o.CafeteriaCommission, expected.CafeteriaCommission, &report.Summary.CommissionIssues},
			{"admin_revenue", o.AdminRevenue, expected.AdminRevenue, &report.Summary.AdminRevenueIssues},
			{"total_amount", o.TotalAmount, expected.TotalAmount, &report.Summary.TotalAmountIssues},
		}

		inconsistent := false
		for _, c := range checks {
			if revenue.Equal(c.actual, c.expected) {
				continue
			}
			inconsistent = true
			*c.counter++
			report.IssuesFound++
			if len(report.Issues) < IssuePreviewLimit {
				report.Issues = append(report.Issues, Issue{
					OrderID:    o.ID,
					Field:      c.field,
					Actual:     c.actual,
					Expected:   c.expected,
					Difference: revenue.Round(c.actual - c.expected),
				})
			}
		}

		if inconsistent {
			report.InconsistentOrders++
		}
	}

	return report, nil
}

// Fix пересчитывает и перезаписывает финансовые поля каждого заказа.
// Subtotal пересчитывается по позициям заказа и берётся из хранилища
// только если позиции отсутствуют. Ошибка записи одного заказа не
// прерывает остальные; операция идемпотентна, её можно запускать повторно.
func (r *Reconciler) Fix(ctx context.Context) (*FixReport, error) {
	orders, err := r.store.GetOrdersWithItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders with items: %w", err)
	}

	report := &FixReport{TotalOrders: len(orders)}

	for _, o := range orders {
		subtotal := ItemsSubtotal(o.Items)
		if subtotal <= 0 {
			// Позиции отсутствуют или не привязаны к заказу —
			// сохранённый subtotal остаётся единственным источником.
			subtotal = o.Subtotal
		}

		b, err := revenue.Calculate(subtotal)
		if err != nil {
			report.ErrorCount++
			continue
		}

		if err := r.store.UpdateOrderFinancials(ctx, o.ID, revenue.Round(subtotal), b); err != nil {
			report.ErrorCount++
			continue
		}

		report.FixedCount++
	}

	return report, nil
}

// ItemsSubtotal суммирует стоимость позиций заказа.
func ItemsSubtotal(items []model.OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}
