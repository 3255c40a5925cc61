// Package validation содержит функции валидации входных данных.
package validation

import "github.com/unieats/unieats-system/internal/model"

// IsValidOrderItem проверяет позицию заказа: непустое название,
// положительная цена и положительное количество.
func IsValidOrderItem(name string, price float64, quantity int) bool {
	return name != "" && price > 0 && quantity > 0
}

// IsValidOrderStatus проверяет, что строка является допустимым статусом заказа.
func IsValidOrderStatus(s string) bool {
	switch model.OrderStatus(s) {
	case model.OrderStatusPending,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusCompleted,
		model.OrderStatusCancelled:
		return true
	}
	return false
}
