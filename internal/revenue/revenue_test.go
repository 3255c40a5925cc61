package revenue

import (
	"errors"
	"math"
	"testing"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		subtotal float64
		want     Breakdown
	}{
		{
			name:     "uncapped fee",
			subtotal: 100.00,
			want: Breakdown{
				UserServiceFee:      4.00,
				CafeteriaCommission: 10.00,
				AdminRevenue:        14.00,
				TotalAmount:         104.00,
			},
		},
		{
			name:     "capped fee",
			subtotal: 1000.00,
			want: Breakdown{
				UserServiceFee:      20.00,
				CafeteriaCommission: 100.00,
				AdminRevenue:        120.00,
				TotalAmount:         1020.00,
			},
		},
		{
			name:     "cap boundary",
			subtotal: 500.00,
			want: Breakdown{
				UserServiceFee:      20.00,
				CafeteriaCommission: 50.00,
				AdminRevenue:        70.00,
				TotalAmount:         520.00,
			},
		},
		{
			name:     "zero subtotal",
			subtotal: 0,
			want:     Breakdown{},
		},
		{
			name:     "fractional amounts rounded to cents",
			subtotal: 57.30,
			want: Breakdown{
				UserServiceFee:      2.29,
				CafeteriaCommission: 5.73,
				AdminRevenue:        8.02,
				TotalAmount:         59.59,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.subtotal)
			if err != nil {
				t.Fatalf("Calculate(%v) error: %v", tt.subtotal, err)
			}
			if got != tt.want {
				t.Fatalf("Calculate(%v) = %+v, want %+v", tt.subtotal, got, tt.want)
			}
		})
	}
}

func TestCalculate_FeeCapProperty(t *testing.T) {
	for _, subtotal := range []float64{500, 501.50, 750, 1000, 99999.99} {
		b, err := Calculate(subtotal)
		if err != nil {
			t.Fatalf("Calculate(%v) error: %v", subtotal, err)
		}
		if b.UserServiceFee != ServiceFeeCap {
			t.Fatalf("Calculate(%v).UserServiceFee = %v, want cap %v", subtotal, b.UserServiceFee, ServiceFeeCap)
		}
	}

	for _, subtotal := range []float64{0, 10, 100, 250.50, 499} {
		b, err := Calculate(subtotal)
		if err != nil {
			t.Fatalf("Calculate(%v) error: %v", subtotal, err)
		}
		if b.UserServiceFee != Round(subtotal*ServiceFeeRate) {
			t.Fatalf("Calculate(%v).UserServiceFee = %v, want %v", subtotal, b.UserServiceFee, Round(subtotal*ServiceFeeRate))
		}
	}
}

func TestCalculate_CompositionInvariant(t *testing.T) {
	for _, subtotal := range []float64{0, 1, 42.42, 100, 499.99, 500, 512.80, 1000, 12345.67} {
		b, err := Calculate(subtotal)
		if err != nil {
			t.Fatalf("Calculate(%v) error: %v", subtotal, err)
		}
		if !Equal(b.AdminRevenue, b.UserServiceFee+b.CafeteriaCommission) {
			t.Fatalf("subtotal %v: AdminRevenue = %v, fee+commission = %v",
				subtotal, b.AdminRevenue, b.UserServiceFee+b.CafeteriaCommission)
		}
		if !Equal(b.TotalAmount, subtotal+b.UserServiceFee) {
			t.Fatalf("subtotal %v: TotalAmount = %v, subtotal+fee = %v",
				subtotal, b.TotalAmount, subtotal+b.UserServiceFee)
		}
		if b.CafeteriaCommission != Round(subtotal*CommissionRate) {
			t.Fatalf("subtotal %v: CafeteriaCommission = %v, want %v",
				subtotal, b.CafeteriaCommission, Round(subtotal*CommissionRate))
		}
	}
}

func TestCalculate_InvalidSubtotal(t *testing.T) {
	for _, subtotal := range []float64{-0.01, -100, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Calculate(subtotal)
		if !errors.Is(err, ErrInvalidSubtotal) {
			t.Fatalf("Calculate(%v) error = %v, want ErrInvalidSubtotal", subtotal, err)
		}
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.004, 1.00},
		{1.125, 1.13},
		{1.006, 1.01},
		{19.9996, 20.00},
		{0, 0},
	}

	for _, tt := range tests {
		if got := Round(tt.in); got != tt.want {
			t.Fatalf("Round(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal(10.00, 10.01) {
		t.Fatalf("values within tolerance must be equal")
	}
	if Equal(10.00, 10.02) {
		t.Fatalf("values beyond tolerance must differ")
	}
}
