package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type ReturnStatus string

const (
	StatusPending  ReturnStatus = "pending"
	StatusApproved ReturnStatus = "approved"
	StatusRejected ReturnStatus = "rejected"
	StatusRefunded ReturnStatus = "refunded"
)

func (s ReturnStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRefunded:
		return true
	}
	return false
}

type Item struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// PriceValue parses the price string. Malformed prices contribute 0 —
// the dashboard displays best-effort data, it does not validate the server.
func (i Item) PriceValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(i.Price), 64)
	if err != nil {
		return 0
	}
	return v
}

type Return struct {
	ID             int64        `json:"id"`
	Status         ReturnStatus `json:"status"`
	Items          []Item       `json:"items"`
	OrderDate      time.Time    `json:"order_date"`
	RegisteredDate time.Time    `json:"registered_date"`
	MerchantID     int64        `json:"merchant_id"`
}

func (r *Return) ItemsTotal() float64 {
	var total float64
	for _, it := range r.Items {
		total += it.PriceValue()
	}
	return total
}

func (r *Return) ItemNames() string {
	names := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}

// ReturnWindowDays is the elapsed time between order and registration in
// fractional days. Negative when the dates are inverted.
func (r *Return) ReturnWindowDays() float64 {
	return r.RegisteredDate.Sub(r.OrderDate).Hours() / 24
}

// DaysToReturn is the window rounded to whole days for display, clamped
// at zero so inverted dates never render a negative count.
func (r *Return) DaysToReturn() int {
	d := math.Round(r.ReturnWindowDays())
	if d < 0 {
		return 0
	}
	return int(d)
}

// MatchesSearch reports whether any item name contains term,
// case-insensitive. An empty term matches every return.
func (r *Return) MatchesSearch(term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, it := range r.Items {
		if strings.Contains(strings.ToLower(it.Name), term) {
			return true
		}
	}
	return false
}

type Merchant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Optional server-precomputed aggregates. A negative average window is
	// the server's sentinel for "no recent returns".
	TotalReturnAmount   *float64 `json:"total_return_amount,omitempty"`
	AverageReturnWindow *float64 `json:"average_return_window,omitempty"`
}
