// Package service owns the application state and coordinates the gateway,
// the store, and the derivation engines. Summary and the visible set are
// derived from store snapshots by pure functions; the store is mutated only
// after the gateway confirms a write.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"returnsdash/internal/audit"
	"returnsdash/internal/gateway"
	"returnsdash/internal/metrics"
	"returnsdash/internal/models"
	"returnsdash/internal/reconcile"
	"returnsdash/internal/store"
	"returnsdash/internal/summary"
	"returnsdash/internal/view"
)

var (
	ErrInvalidStatus  = errors.New("invalid return status")
	ErrActionInFlight = errors.New("another action is in flight for this return")
)

type Gateway interface {
	ListReturns(ctx context.Context) ([]models.Return, error)
	ListMerchants(ctx context.Context) ([]models.Merchant, error)
	UpdateReturnStatus(ctx context.Context, id int64, status models.ReturnStatus) (*models.Return, error)
	InitiateRefund(ctx context.Context, id int64) (*gateway.RefundConfirmation, error)
}

type SessionStorage interface {
	SaveSelectedMerchant(id int64) error
	SelectedMerchant() (int64, bool, error)
}

type DashboardService struct {
	gw       Gateway
	store    *store.Store
	engine   *reconcile.Engine
	sessions SessionStorage // nil disables selection persistence
	audit    *audit.Pool    // nil disables auditing
	metrics  *metrics.DashboardMetrics

	trustMerchantAggregates bool
}

func NewDashboardService(gw Gateway, st *store.Store, sessions SessionStorage, auditPool *audit.Pool, m *metrics.DashboardMetrics, trustMerchantAggregates bool) *DashboardService {
	return &DashboardService{
		gw:                      gw,
		store:                   st,
		engine:                  reconcile.NewEngine(st),
		sessions:                sessions,
		audit:                   auditPool,
		metrics:                 m,
		trustMerchantAggregates: trustMerchantAggregates,
	}
}

// Load populates the store from the gateway. The two list fetches run
// concurrently and may settle in either order; loading stays true until
// both have. A failed fetch is logged and the session continues with
// whatever partial data arrived.
func (s *DashboardService) Load(ctx context.Context) {
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	var (
		returns      []models.Return
		merchants    []models.Merchant
		returnsErr   error
		merchantsErr error
	)

	// Errors are captured per-fetch instead of returned, so one failure
	// does not cancel the sibling fetch.
	g := new(errgroup.Group)
	g.Go(func() error {
		start := time.Now()
		returns, returnsErr = s.gw.ListReturns(ctx)
		s.metrics.RecordGatewayCall("list_returns", time.Since(start).Seconds(), returnsErr)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		merchants, merchantsErr = s.gw.ListMerchants(ctx)
		s.metrics.RecordGatewayCall("list_merchants", time.Since(start).Seconds(), merchantsErr)
		return nil
	})
	_ = g.Wait()

	if returnsErr != nil {
		log.Printf("Error fetching returns: %v", returnsErr)
	} else {
		s.store.SetReturns(returns)
	}
	if merchantsErr != nil {
		log.Printf("Error fetching merchants: %v", merchantsErr)
	} else {
		s.store.SetMerchants(merchants)
	}

	s.applyDefaultSelection()
}

// applyDefaultSelection picks the remembered merchant when one is stored,
// otherwise the first merchant in the list. Does nothing when something is
// already selected or no merchants arrived.
func (s *DashboardService) applyDefaultSelection() {
	if s.store.SelectedMerchant() != 0 {
		return
	}

	if s.sessions != nil {
		if id, ok, err := s.sessions.SelectedMerchant(); err != nil {
			log.Printf("Error reading remembered merchant: %v", err)
		} else if ok {
			s.store.SelectMerchant(id)
			return
		}
	}

	merchants := s.store.Merchants()
	if len(merchants) > 0 {
		s.store.SelectMerchant(merchants[0].ID)
	}
}

func (s *DashboardService) SelectMerchant(id int64) {
	s.store.SelectMerchant(id)
	s.metrics.MerchantSelectionsTotal.Inc()

	if s.sessions != nil {
		if err := s.sessions.SaveSelectedMerchant(id); err != nil {
			log.Printf("Error persisting merchant selection: %v", err)
		}
	}
}

// Summary derives the aggregate pair for the current selection. With
// TRUST_MERCHANT_AGGREGATES enabled and a merchant record carrying
// precomputed fields, those are used verbatim; otherwise the summary is
// recomputed from the raw returns snapshot.
func (s *DashboardService) Summary() summary.Summary {
	selected := s.store.SelectedMerchant()
	if selected == 0 {
		return summary.Summary{}
	}

	if s.trustMerchantAggregates {
		if m, ok := s.store.GetMerchant(selected); ok {
			if sum, ok := summary.FromMerchant(m); ok {
				return sum
			}
		}
	}

	s.metrics.SummaryRecomputesTotal.Inc()
	return summary.Compute(s.store.Returns(), selected)
}

// Merchants is a snapshot of the merchant list, without any of the
// derivations the full State carries.
func (s *DashboardService) Merchants() []models.Merchant {
	return s.store.Merchants()
}

func (s *DashboardService) VisibleReturns(searchTerm string) []view.Row {
	return view.Rows(s.store.Returns(), s.store.SelectedMerchant(), searchTerm)
}

// UpdateStatus writes the new status through the gateway and, only after
// confirmation, reconciles the store. On failure the store is untouched.
func (s *DashboardService) UpdateStatus(ctx context.Context, id int64, status models.ReturnStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if !s.store.BeginAction(id) {
		return ErrActionInFlight
	}
	defer s.store.EndAction(id)

	prev, known := s.store.GetReturn(id)
	if !known {
		return reconcile.ErrUnknownReturn
	}

	start := time.Now()
	updated, err := s.gw.UpdateReturnStatus(ctx, id, status)
	s.metrics.RecordGatewayCall("update_status", time.Since(start).Seconds(), err)
	if err != nil {
		log.Printf("Error updating status for return %d: %v", id, err)
		return err
	}

	// The gateway echoes the updated return; trust its status when sane.
	confirmed := status
	if updated != nil && updated.Status.Valid() {
		confirmed = updated.Status
	}
	if err := s.engine.ApplyStatusUpdate(id, confirmed); err != nil {
		return err
	}

	s.metrics.RecordStatusUpdate(string(confirmed))
	s.auditStatusChange(id, prev.Status, confirmed, "status update confirmed")
	return nil
}

// InitiateRefund requests a refund through the gateway and reconciles the
// confirmed outcome. A *gateway.RefundError propagates to the caller so its
// reasons can be surfaced to the user.
func (s *DashboardService) InitiateRefund(ctx context.Context, id int64) (string, error) {
	if !s.store.BeginAction(id) {
		return "", ErrActionInFlight
	}
	defer s.store.EndAction(id)

	prev, known := s.store.GetReturn(id)
	if !known {
		return "", reconcile.ErrUnknownReturn
	}

	start := time.Now()
	conf, err := s.gw.InitiateRefund(ctx, id)
	s.metrics.RecordGatewayCall("initiate_refund", time.Since(start).Seconds(), err)
	s.metrics.RecordRefund(prev.ItemsTotal(), err)
	if err != nil {
		log.Printf("Error initiating refund for return %d: %v", id, err)
		return "", err
	}
	if conf != nil && conf.RefundID != "" {
		log.Printf("Refund initiated for return %d: %s", id, conf.RefundID)
	}

	msg, err := s.engine.ApplyRefundOutcome(id)
	if err != nil {
		return "", err
	}

	s.auditStatusChange(id, prev.Status, models.StatusRefunded, msg)
	return msg, nil
}

// Refresh re-runs the two list fetches, the session-reload equivalent.
func (s *DashboardService) Refresh(ctx context.Context) {
	s.Load(ctx)
}

type State struct {
	Loading            bool              `json:"loading"`
	Merchants          []models.Merchant `json:"merchants"`
	SelectedMerchantID int64             `json:"selected_merchant_id"`
	Summary            summary.Summary   `json:"summary"`
	Returns            []view.Row        `json:"returns"`
	SuccessMessage     string            `json:"success_message,omitempty"`
}

func (s *DashboardService) State(searchTerm string) State {
	return State{
		Loading:            s.store.Loading(),
		Merchants:          s.store.Merchants(),
		SelectedMerchantID: s.store.SelectedMerchant(),
		Summary:            s.Summary(),
		Returns:            s.VisibleReturns(searchTerm),
		SuccessMessage:     s.store.Message(),
	}
}

func (s *DashboardService) auditStatusChange(id int64, from, to models.ReturnStatus, msg string) {
	if s.audit == nil {
		return
	}
	rec := audit.NewRecord()
	rec.ReturnID = id
	rec.OldStatus = string(from)
	rec.NewStatus = string(to)
	rec.Message = msg
	s.audit.Log(rec)
}
