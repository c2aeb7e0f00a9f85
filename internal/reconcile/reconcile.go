// Package reconcile applies the outcome of confirmed gateway writes to the
// session store without a full re-fetch. The store is mutated only after
// the gateway has acknowledged the write, so it always reflects
// server-acknowledged truth and there is nothing to roll back.
package reconcile

import (
	"errors"
	"fmt"

	"returnsdash/internal/models"
	"returnsdash/internal/store"
)

var ErrUnknownReturn = errors.New("return not present in store")

type Engine struct {
	store *store.Store
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st}
}

// ApplyStatusUpdate replaces the matching return's status in place.
// Idempotent: applying the same confirmed status twice leaves the store
// unchanged after the first application.
func (e *Engine) ApplyStatusUpdate(id int64, status models.ReturnStatus) error {
	if !e.store.UpdateStatus(id, status) {
		return ErrUnknownReturn
	}
	return nil
}

// ApplyRefundOutcome marks the return refunded and publishes the
// confirmation message with the refunded total and the item names in their
// original order. Applying it twice yields the same store state and the
// same (not duplicated) message.
func (e *Engine) ApplyRefundOutcome(id int64) (string, error) {
	r, ok := e.store.GetReturn(id)
	if !ok {
		return "", ErrUnknownReturn
	}

	if !e.store.UpdateStatus(id, models.StatusRefunded) {
		return "", ErrUnknownReturn
	}

	msg := fmt.Sprintf("Refund of $%.2f initiated successfully for the items: %s",
		r.ItemsTotal(), r.ItemNames())
	e.store.SetMessage(msg)
	return msg, nil
}
