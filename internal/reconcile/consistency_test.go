package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unieats/unieats-system/internal/model"
)

func TestValidateConsistency_Match(t *testing.T) {
	orders := []model.Order{
		consistentOrder(1, 100),  // 4.00 + 10.00
		consistentOrder(2, 1000), // 20.00 + 100.00
	}
	snap := Snapshot{
		TotalRevenue:         134.00,
		UserServiceFees:      24.00,
		CafeteriaCommissions: 110.00,
	}

	report := ValidateConsistency(orders, snap)

	assert.True(t, report.AllCalculationsCorrect)
	assert.True(t, report.RevenueCalculation.Match)
	assert.Equal(t, 134.00, report.RevenueCalculation.Expected)
	assert.Equal(t, 134.00, report.RevenueCalculation.Actual)
	assert.True(t, report.ServiceFees.Match)
	assert.True(t, report.Commissions.Match)
}

func TestValidateConsistency_DoubleCountedFee(t *testing.T) {
	orders := []model.Order{consistentOrder(1, 100)}

	// Агрегирующий код дважды применил сервисный сбор.
	snap := Snapshot{
		TotalRevenue:         18.00,
		UserServiceFees:      8.00,
		CafeteriaCommissions: 10.00,
	}

	report := ValidateConsistency(orders, snap)

	assert.False(t, report.AllCalculationsCorrect)
	assert.False(t, report.RevenueCalculation.Match)
	assert.Equal(t, 4.00, report.RevenueCalculation.Difference)
	assert.False(t, report.ServiceFees.Match)
	assert.Equal(t, 4.00, report.ServiceFees.Difference)
	assert.True(t, report.Commissions.Match)
}

func TestValidateConsistency_EmptyOrders(t *testing.T) {
	report := ValidateConsistency(nil, Snapshot{})
	assert.True(t, report.AllCalculationsCorrect)

	report = ValidateConsistency(nil, Snapshot{TotalRevenue: 10})
	assert.False(t, report.AllCalculationsCorrect)
}

func TestValidateConsistency_WithinTolerance(t *testing.T) {
	orders := []model.Order{consistentOrder(1, 100)}
	snap := Snapshot{
		TotalRevenue:         14.01,
		UserServiceFees:      4.00,
		CafeteriaCommissions: 10.00,
	}

	report := ValidateConsistency(orders, snap)
	assert.True(t, report.AllCalculationsCorrect)
}
