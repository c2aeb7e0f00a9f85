package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returnsdash/internal/gateway"
	"returnsdash/internal/metrics"
	"returnsdash/internal/models"
	"returnsdash/internal/reconcile"
	"returnsdash/internal/service"
	"returnsdash/internal/store"
)

type fakeGateway struct {
	mu sync.Mutex

	returns   []models.Return
	merchants []models.Merchant

	returnsErr   error
	merchantsErr error
	updateErr    error
	refundErr    error

	updateCalls []models.ReturnStatus
	refundCalls []int64
}

func (g *fakeGateway) ListReturns(context.Context) ([]models.Return, error) {
	if g.returnsErr != nil {
		return nil, g.returnsErr
	}
	return g.returns, nil
}

func (g *fakeGateway) ListMerchants(context.Context) ([]models.Merchant, error) {
	if g.merchantsErr != nil {
		return nil, g.merchantsErr
	}
	return g.merchants, nil
}

func (g *fakeGateway) UpdateReturnStatus(_ context.Context, id int64, status models.ReturnStatus) (*models.Return, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	g.updateCalls = append(g.updateCalls, status)
	return &models.Return{ID: id, Status: status}, nil
}

func (g *fakeGateway) InitiateRefund(_ context.Context, id int64) (*gateway.RefundConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refundCalls = append(g.refundCalls, id)
	return &gateway.RefundConfirmation{RefundID: "rf-1", Status: "initiated"}, nil
}

type fakeSessions struct {
	saved      []int64
	remembered int64
	has        bool
	err        error
}

func (s *fakeSessions) SaveSelectedMerchant(id int64) error {
	s.saved = append(s.saved, id)
	return nil
}

func (s *fakeSessions) SelectedMerchant() (int64, bool, error) {
	return s.remembered, s.has, s.err
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixtureGateway() *fakeGateway {
	return &fakeGateway{
		returns: []models.Return{
			{
				ID: 1, MerchantID: 1, Status: models.StatusPending,
				Items:          []models.Item{{Name: "Item 1", Price: "10.00"}},
				OrderDate:      date("2024-11-01"),
				RegisteredDate: date("2024-11-05"),
			},
			{
				ID: 2, MerchantID: 2, Status: models.StatusPending,
				Items:          []models.Item{{Name: "Other", Price: "3.00"}},
				OrderDate:      date("2024-11-01"),
				RegisteredDate: date("2024-11-02"),
			},
		},
		merchants: []models.Merchant{
			{ID: 1, Name: "Merchant One"},
			{ID: 2, Name: "Merchant Two"},
		},
	}
}

func newService(gw service.Gateway, sessions service.SessionStorage, trust bool) *service.DashboardService {
	st := store.New(50 * time.Millisecond)
	m := metrics.New(prometheus.NewRegistry())
	return service.NewDashboardService(gw, st, sessions, nil, m, trust)
}

func TestLoadPopulatesStoreAndSelectsFirstMerchant(t *testing.T) {
	svc := newService(fixtureGateway(), nil, false)
	svc.Load(context.Background())

	state := svc.State("")
	assert.False(t, state.Loading)
	require.Len(t, state.Merchants, 2)
	assert.Equal(t, int64(1), state.SelectedMerchantID, "first merchant becomes default selection")
	require.Len(t, state.Returns, 1)
	assert.Equal(t, int64(1), state.Returns[0].ID)
}

func TestLoadDefaultSelectionFirstInList(t *testing.T) {
	gw := fixtureGateway()
	gw.merchants = []models.Merchant{{ID: 2, Name: "Two"}, {ID: 5, Name: "Five"}}

	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	assert.Equal(t, int64(2), svc.State("").SelectedMerchantID)
}

func TestLoadPrefersRememberedSelection(t *testing.T) {
	sessions := &fakeSessions{remembered: 2, has: true}
	svc := newService(fixtureGateway(), sessions, false)
	svc.Load(context.Background())

	assert.Equal(t, int64(2), svc.State("").SelectedMerchantID)
}

func TestLoadToleratesReturnsFetchFailure(t *testing.T) {
	gw := fixtureGateway()
	gw.returnsErr = errors.New("network down")

	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	state := svc.State("")
	assert.False(t, state.Loading, "loading ends despite the failure")
	assert.Len(t, state.Merchants, 2, "partial data is kept")
	assert.Empty(t, state.Returns)
}

func TestLoadToleratesMerchantsFetchFailure(t *testing.T) {
	gw := fixtureGateway()
	gw.merchantsErr = errors.New("network down")

	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	state := svc.State("")
	assert.False(t, state.Loading)
	assert.Empty(t, state.Merchants)
	assert.Equal(t, int64(0), state.SelectedMerchantID)
	assert.Empty(t, state.Returns, "nothing selected shows nothing")
}

func TestSummaryForSelection(t *testing.T) {
	svc := newService(fixtureGateway(), nil, false)
	svc.Load(context.Background())

	sum := svc.Summary()
	assert.Equal(t, 10.00, sum.TotalReturnAmount)
	require.NotNil(t, sum.AverageReturnWindow)
	assert.Equal(t, 4.0, *sum.AverageReturnWindow)
}

func TestSummaryTrustsMerchantAggregatesWhenConfigured(t *testing.T) {
	total := 777.0
	avg := 2.5
	gw := fixtureGateway()
	gw.merchants[0].TotalReturnAmount = &total
	gw.merchants[0].AverageReturnWindow = &avg

	svc := newService(gw, nil, true)
	svc.Load(context.Background())

	sum := svc.Summary()
	assert.Equal(t, 777.0, sum.TotalReturnAmount)
	require.NotNil(t, sum.AverageReturnWindow)
	assert.Equal(t, 2.5, *sum.AverageReturnWindow)
}

func TestSummaryRecomputesWhenMerchantLacksAggregates(t *testing.T) {
	svc := newService(fixtureGateway(), nil, true)
	svc.Load(context.Background())

	sum := svc.Summary()
	assert.Equal(t, 10.00, sum.TotalReturnAmount, "falls back to client-side recompute")
}

func TestMerchantsSnapshotSkipsSummaryDerivation(t *testing.T) {
	st := store.New(50 * time.Millisecond)
	m := metrics.New(prometheus.NewRegistry())
	svc := service.NewDashboardService(fixtureGateway(), st, nil, nil, m, false)
	svc.Load(context.Background())

	before := testutil.ToFloat64(m.SummaryRecomputesTotal)
	merchants := svc.Merchants()

	require.Len(t, merchants, 2)
	assert.Equal(t, before, testutil.ToFloat64(m.SummaryRecomputesTotal),
		"listing merchants must not recompute the summary")
}

func TestSelectMerchantPersistsChoice(t *testing.T) {
	sessions := &fakeSessions{}
	svc := newService(fixtureGateway(), sessions, false)
	svc.Load(context.Background())

	svc.SelectMerchant(2)

	assert.Equal(t, int64(2), svc.State("").SelectedMerchantID)
	assert.Equal(t, []int64{2}, sessions.saved)
}

func TestUpdateStatusConfirmedWriteReconciles(t *testing.T) {
	gw := fixtureGateway()
	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	err := svc.UpdateStatus(context.Background(), 1, models.StatusApproved)
	require.NoError(t, err)

	state := svc.State("")
	assert.Equal(t, models.StatusApproved, state.Returns[0].Status)
	assert.Equal(t, []models.ReturnStatus{models.StatusApproved}, gw.updateCalls)
}

func TestUpdateStatusFailureLeavesStoreUnchanged(t *testing.T) {
	gw := fixtureGateway()
	gw.updateErr = errors.New("gateway rejected")

	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	err := svc.UpdateStatus(context.Background(), 1, models.StatusApproved)
	assert.Error(t, err)

	assert.Equal(t, models.StatusPending, svc.State("").Returns[0].Status)
}

func TestUpdateStatusRejectsInvalidStatus(t *testing.T) {
	gw := fixtureGateway()
	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	err := svc.UpdateStatus(context.Background(), 1, "shipped")
	assert.ErrorIs(t, err, service.ErrInvalidStatus)
	assert.Empty(t, gw.updateCalls, "gateway never called with an invalid status")
}

func TestUpdateStatusUnknownReturn(t *testing.T) {
	svc := newService(fixtureGateway(), nil, false)
	svc.Load(context.Background())

	err := svc.UpdateStatus(context.Background(), 42, models.StatusApproved)
	assert.ErrorIs(t, err, reconcile.ErrUnknownReturn)
}

func TestInitiateRefund(t *testing.T) {
	svc := newService(fixtureGateway(), nil, false)
	svc.Load(context.Background())

	msg, err := svc.InitiateRefund(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, msg, "10.00")
	assert.Contains(t, msg, "Item 1")

	state := svc.State("")
	assert.Equal(t, models.StatusRefunded, state.Returns[0].Status)
	assert.Equal(t, msg, state.SuccessMessage)
}

func TestInitiateRefundFailurePropagatesReasons(t *testing.T) {
	gw := fixtureGateway()
	gw.refundErr = &gateway.RefundError{Reasons: []string{"already refunded"}}

	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	_, err := svc.InitiateRefund(context.Background(), 1)

	var refundErr *gateway.RefundError
	require.ErrorAs(t, err, &refundErr)
	assert.Equal(t, []string{"already refunded"}, refundErr.Reasons)

	state := svc.State("")
	assert.Equal(t, models.StatusPending, state.Returns[0].Status, "store untouched on failure")
	assert.Empty(t, state.SuccessMessage)
}

func TestRefreshReloadsCollections(t *testing.T) {
	gw := fixtureGateway()
	svc := newService(gw, nil, false)
	svc.Load(context.Background())

	gw.returns = append(gw.returns, models.Return{
		ID: 3, MerchantID: 1, Status: models.StatusPending,
		Items:          []models.Item{{Name: "Late arrival", Price: "1.00"}},
		OrderDate:      date("2024-11-01"),
		RegisteredDate: date("2024-11-02"),
	})
	svc.Refresh(context.Background())

	assert.Len(t, svc.State("").Returns, 2)
}
