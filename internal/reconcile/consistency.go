package reconcile

import (
	"github.com/unieats/unieats-system/internal/model"
	"github.com/unieats/unieats-system/internal/revenue"
)

// Snapshot содержит агрегаты выручки, полученные из внешнего источника.
type Snapshot struct {
	TotalRevenue         float64
	UserServiceFees      float64
	CafeteriaCommissions float64
}

// MetricCheck содержит сравнение одного агрегата с независимым пересчётом.
type MetricCheck struct {
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
	Match      bool    `json:"match"`
	Difference float64 `json:"difference"`
}

// ConsistencyReport содержит результат сверки агрегатов выручки.
type ConsistencyReport struct {
	RevenueCalculation     MetricCheck `json:"revenue_calculation"`
	ServiceFees            MetricCheck `json:"service_fees"`
	Commissions            MetricCheck `json:"commissions"`
	AllCalculationsCorrect bool        `json:"all_calculations_correct"`
}

// ValidateConsistency сверяет внешний агрегат выручки с пересчётом по
// сырым заказам. Расхождение означает ошибку в агрегирующем коде
// (двойной учёт, повторно применённый сбор), а не в полях заказов:
// их проверяет Reconciler.Audit. Операция ничего не изменяет.
func ValidateConsistency(orders []model.Order, snap Snapshot) *ConsistencyReport {
	var revenueSum, feeSum, commissionSum float64
	for _, o := range orders {
		revenueSum += o.AdminRevenue
		feeSum += o.UserServiceFee
		commissionSum += o.CafeteriaCommission
	}

	report := &ConsistencyReport{
		RevenueCalculation: checkMetric(revenueSum, snap.TotalRevenue),
		ServiceFees:        checkMetric(feeSum, snap.UserServiceFees),
		Commissions:        checkMetric(commissionSum, snap.CafeteriaCommissions),
	}
	report.AllCalculationsCorrect = report.RevenueCalculation.Match &&
		report.ServiceFees.Match &&
		report.Commissions.Match

	return report
}

func checkMetric(expected, actual float64) MetricCheck {
	return MetricCheck{
		Expected:   revenue.Round(expected),
		Actual:     actual,
		Match:      revenue.Equal(expected, actual),
		Difference: revenue.Round(actual - expected),
	}
}
