// Package model содержит доменные сущности сервиса UniEats.
package model

import "time"

// User представляет пользователя платформы (студент или сотрудник).
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Cafeteria описывает столовую кампуса, принимающую заказы.
type Cafeteria struct {
	ID        int64
	Name      string
	Location  string
	IsActive  bool
	CreatedAt time.Time
}

// OrderItem описывает одну позицию заказа.
type OrderItem struct {
	ID       int64
	Name     string
	Price    float64
	Quantity int
}

// Order описывает заказ. Все финансовые поля, кроме Subtotal,
// являются производными от Subtotal; единственный компонент,
// которому разрешено перезаписывать их после создания, — сверка.
type Order struct {
	ID                   int64
	UserID               int64
	CafeteriaID          int64
	Status               OrderStatus
	Subtotal             float64
	UserServiceFee       float64
	CafeteriaCommission  float64
	AdminRevenue         float64
	TotalAmount          float64
	ServiceFeePercentage float64
	Items                []OrderItem
	CreatedAt            time.Time
}

// RevenueSummary содержит агрегаты выручки по неотменённым заказам.
type RevenueSummary struct {
	TotalRevenue         float64 `json:"total_revenue"`
	UserServiceFees      float64 `json:"user_service_fees"`
	CafeteriaCommissions float64 `json:"cafeteria_commissions"`
	OrdersCount          int64   `json:"orders_count"`
}
