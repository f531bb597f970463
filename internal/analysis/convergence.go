package analysis

import (
	"math"

	"github.com/san-kum/seird/internal/dynamo"
)

// ObservedOrder returns log2(delta[k-1]/delta[k]) for every attempt k >= 2.
// Attempts whose deltas are zero yield NaN.
func ObservedOrder(attempts []dynamo.Attempt) []float64 {
	if len(attempts) < 3 {
		return nil
	}

	orders := make([]float64, 0, len(attempts)-2)
	for k := 2; k < len(attempts); k++ {
		prev, cur := attempts[k-1].Delta, attempts[k].Delta
		if prev == 0 || cur == 0 {
			orders = append(orders, math.NaN())
			continue
		}
		orders = append(orders, math.Log2(prev/cur))
	}
	return orders
}

// Extrapolate combines the last two deceased totals with the last observed
// order into a Richardson estimate of the h -> 0 limit. It needs at least
// three attempts and a positive order.
func Extrapolate(attempts []dynamo.Attempt) (float64, bool) {
	orders := ObservedOrder(attempts)
	if len(orders) == 0 {
		return 0, false
	}

	p := orders[len(orders)-1]
	if math.IsNaN(p) || p <= 0 {
		return 0, false
	}

	last := attempts[len(attempts)-1].Deceased
	prev := attempts[len(attempts)-2].Deceased
	return last + (last-prev)/(math.Pow(2, p)-1), true
}
