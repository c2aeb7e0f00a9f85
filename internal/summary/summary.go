// Package summary derives per-merchant aggregate statistics from the raw
// returns collection. Compute is a pure function of its inputs: it can be
// called repeatedly and safely memoized.
package summary

import "returnsdash/internal/models"

// Summary is the derived pair for one merchant. AverageReturnWindow is nil
// when there is nothing to average — distinguishable from an average of
// zero days.
type Summary struct {
	TotalReturnAmount   float64  `json:"total_return_amount"`
	AverageReturnWindow *float64 `json:"average_return_window"`
}

// Compute filters returns to the given merchant and aggregates them.
// Only elements with a matching merchant_id influence the result.
func Compute(returns []models.Return, merchantID int64) Summary {
	var (
		total float64
		days  float64
		n     int
	)
	for i := range returns {
		r := &returns[i]
		if r.MerchantID != merchantID {
			continue
		}
		total += r.ItemsTotal()
		days += r.ReturnWindowDays()
		n++
	}

	if n == 0 {
		return Summary{TotalReturnAmount: 0}
	}
	avg := days / float64(n)
	return Summary{TotalReturnAmount: total, AverageReturnWindow: &avg}
}

// FromMerchant builds a Summary from server-precomputed aggregates when the
// merchant record carries them. The second result is false when it does not
// and the caller must fall back to Compute. A negative precomputed window is
// the server's "no recent returns" sentinel and maps to the same nil average
// as an empty set.
func FromMerchant(m models.Merchant) (Summary, bool) {
	if m.TotalReturnAmount == nil {
		return Summary{}, false
	}
	s := Summary{TotalReturnAmount: *m.TotalReturnAmount}
	if m.AverageReturnWindow != nil && *m.AverageReturnWindow >= 0 {
		avg := *m.AverageReturnWindow
		s.AverageReturnWindow = &avg
	}
	return s, true
}
