// Package view derives the visible subset of returns from a state snapshot.
package view

import "returnsdash/internal/models"

// Row is one displayable return with its derived days-to-return count.
type Row struct {
	models.Return
	DaysToReturn int `json:"days_to_return"`
}

// VisibleReturns keeps returns belonging to the selected merchant whose
// items match the search term, preserving the original collection order.
// No merchant selected (id 0) yields an empty list.
func VisibleReturns(returns []models.Return, selectedMerchantID int64, searchTerm string) []models.Return {
	visible := make([]models.Return, 0)
	if selectedMerchantID == 0 {
		return visible
	}
	for i := range returns {
		r := &returns[i]
		if r.MerchantID != selectedMerchantID {
			continue
		}
		if !r.MatchesSearch(searchTerm) {
			continue
		}
		visible = append(visible, *r)
	}
	return visible
}

// Rows decorates the visible set with the derived days-to-return column.
func Rows(returns []models.Return, selectedMerchantID int64, searchTerm string) []Row {
	visible := VisibleReturns(returns, selectedMerchantID, searchTerm)
	rows := make([]Row, 0, len(visible))
	for _, r := range visible {
		rows = append(rows, Row{Return: r, DaysToReturn: r.DaysToReturn()})
	}
	return rows
}
