// Package revenue реализует расчёт сервисного сбора и комиссий заказа.
package revenue

import (
	"errors"
	"fmt"
	"math"
)

const (
	// ServiceFeeRate — доля сервисного сбора, взимаемого с пользователя.
	ServiceFeeRate = 0.04
	// ServiceFeeCap — максимальный сервисный сбор за один заказ.
	ServiceFeeCap = 20.00
	// CommissionRate — доля комиссии, удерживаемой со столовой.
	CommissionRate = 0.10
	// ServiceFeePercentage — значение, сохраняемое в заказе как метаданные.
	ServiceFeePercentage = 4
	// Tolerance — допуск при сравнении денежных значений.
	Tolerance = 0.01
)

// ErrInvalidSubtotal возвращается при отрицательной или нечисловой сумме заказа.
var ErrInvalidSubtotal = errors.New("invalid subtotal")

// Breakdown содержит производные финансовые поля заказа.
type Breakdown struct {
	UserServiceFee      float64
	CafeteriaCommission float64
	AdminRevenue        float64
	TotalAmount         float64
}

// Calculate вычисляет финансовые поля заказа из его subtotal.
// Отрицательный или нечисловой subtotal означает ошибку вызывающего кода
// и не маскируется: выручка не может быть отрицательной.
func Calculate(subtotal float64) (Breakdown, error) {
	if math.IsNaN(subtotal) || math.IsInf(subtotal, 0) || subtotal < 0 {
		return Breakdown{}, fmt.Errorf("%w: %v", ErrInvalidSubtotal, subtotal)
	}

	fee := subtotal * ServiceFeeRate
	if fee > ServiceFeeCap {
		fee = ServiceFeeCap
	}

	// Сбор и комиссия округляются до копеек первыми, чтобы
	// adminRevenue всегда был точной суммой сохранённых значений.
	fee = Round(fee)
	commission := Round(subtotal * CommissionRate)

	return Breakdown{
		UserServiceFee:      fee,
		CafeteriaCommission: commission,
		AdminRevenue:        Round(fee + commission),
		TotalAmount:         Round(subtotal + fee),
	}, nil
}

// Round округляет денежное значение до копеек, половина — вверх.
// Тот же способ округления использует слой хранения при записи,
// иначе аудит и исправление будут спорить друг с другом.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Equal сравнивает два денежных значения с допуском Tolerance.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}
