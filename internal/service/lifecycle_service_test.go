package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/events"
)

var basicTariff = domain.Tariff{
	ID:                  "tariff-basic",
	Name:                "Basic",
	OrdersLimit:         3,
	ReactionTimeMinutes: 60,
	Price:               100,
}

type lifecycleFixture struct {
	parties    *memPartyRepo
	orders     *memOrderRepo
	dispatcher *recordingDispatcher
	svc        *LifecycleService
	now        time.Time
}

func newLifecycleFixture(t *testing.T, now time.Time) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{now: now}
	f.parties = newMemPartyRepo()
	f.orders = newMemOrderRepo(f.parties, func() time.Time { return f.now })
	f.dispatcher = &recordingDispatcher{}
	f.svc = NewLifecycleService(LifecycleDependencies{
		OrderRepo:  f.orders,
		PartyRepo:  f.parties,
		Settings:   staticSettings{settings: domain.DefaultSettings()},
		Dispatcher: f.dispatcher,
		Now:        func() time.Time { return f.now },
	})
	return f
}

func (f *lifecycleFixture) addPaidClient(id string) {
	f.parties.addClient(domain.Party{
		ID: id, Nick: id + "nick", Role: domain.RoleClient, Status: domain.PartyStatusActive,
	}, true, basicTariff)
}

func TestBillingCycleStart(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		name       string
		now        time.Time
		billingDay int
		want       time.Time
	}{
		{
			name:       "mid month after boundary",
			now:        time.Date(2024, 3, 20, 15, 0, 0, 0, loc),
			billingDay: 1,
			want:       time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
		},
		{
			name:       "before boundary rolls back one month",
			now:        time.Date(2024, 3, 10, 12, 0, 0, 0, loc),
			billingDay: 15,
			want:       time.Date(2024, 2, 15, 0, 0, 0, 0, loc),
		},
		{
			name:       "exactly on boundary belongs to current cycle",
			now:        time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
			billingDay: 1,
			want:       time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
		},
		{
			name:       "january rolls back to december",
			now:        time.Date(2024, 1, 3, 9, 0, 0, 0, loc),
			billingDay: 5,
			want:       time.Date(2023, 12, 5, 0, 0, 0, 0, loc),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BillingCycleStart(tc.now, tc.billingDay))
		})
	}
}

func TestCreateOrderUnpaidTariff(t *testing.T) {
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.parties.addClient(domain.Party{
		ID: "client-1", Nick: "clientone", Role: domain.RoleClient, Status: domain.PartyStatusActive,
	}, false, basicTariff)

	_, err := f.svc.CreateOrder(context.Background(), "client-1", "fix printer", "")
	assert.ErrorIs(t, err, domain.ErrPaymentRequired)
}

func TestCreateOrderActiveOrderExists(t *testing.T) {
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	_, err := f.svc.CreateOrder(context.Background(), "client-1", "fix printer", "")
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(context.Background(), "client-1", "fix scanner", "")
	assert.ErrorIs(t, err, domain.ErrActiveOrderExists)
}

func TestCreateOrderQuota(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	// Three closed orders inside the cycle exhaust the Basic quota.
	for i := 0; i < basicTariff.OrdersLimit; i++ {
		order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
		require.NoError(t, err)
		require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))
		require.NoError(t, f.svc.CloseWork(ctx, order.ID, "contractor-1"))
	}

	_, err := f.svc.CreateOrder(ctx, "client-1", "one too many", "")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestCreateOrderCancelledDoesNotCountTowardQuota(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	for i := 0; i < basicTariff.OrdersLimit; i++ {
		order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
		require.NoError(t, err)
		require.NoError(t, f.svc.CancelWork(ctx, order.ID, "client-1"))
	}

	_, err := f.svc.CreateOrder(ctx, "client-1", "still allowed", "")
	assert.NoError(t, err)
}

func TestCreateOrderQuotaIgnoresPreviousCycle(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	// Orders from February are outside the March cycle.
	for i := 0; i < basicTariff.OrdersLimit; i++ {
		f.orders.seed(domain.Order{
			ClientID:  "client-1",
			Status:    domain.OrderStatusClosed,
			CreatedAt: time.Date(2024, 2, 10+i, 12, 0, 0, 0, time.UTC),
		})
	}

	_, err := f.svc.CreateOrder(ctx, "client-1", "new cycle", "")
	assert.NoError(t, err)
}

func TestTakeInWork(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "secret")
	require.NoError(t, err)

	require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInWork, stored.Status)
	require.NotNil(t, stored.ContractorID)
	assert.Equal(t, "contractor-1", *stored.ContractorID)
	assert.NotNil(t, stored.AssignedAt)
	assert.Equal(t, "secret", stored.Creds)
}

func TestTakeInWorkSecondTakerLoses(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))
	err = f.svc.TakeInWork(ctx, order.ID, "contractor-2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "contractor-1", *stored.ContractorID)
}

func TestTakeInWorkUnknownOrder(t *testing.T) {
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	err := f.svc.TakeInWork(context.Background(), "no-such-order", "contractor-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCloseWorkErasesCredentials(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "login/password")
	require.NoError(t, err)
	require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))
	require.NoError(t, f.svc.CloseWork(ctx, order.ID, "contractor-1"))

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusClosed, stored.Status)
	assert.Empty(t, stored.Creds)
	assert.NotNil(t, stored.ClosedAt)
}

func TestCloseWorkRequiresInWork(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
	require.NoError(t, err)

	err = f.svc.CloseWork(ctx, order.ID, "contractor-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelWork(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	created, err := f.svc.CreateOrder(ctx, "client-1", "cancel me", "creds")
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelWork(ctx, created.ID, "client-1"))

	stored, err := f.orders.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
	assert.Empty(t, stored.Creds)

	// A terminal order cannot be cancelled again.
	err = f.svc.CancelWork(ctx, created.ID, "client-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSetEstimate(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.SetEstimate(ctx, order.ID, 0), domain.ErrEstimateOutOfRange)
	assert.ErrorIs(t, f.svc.SetEstimate(ctx, order.ID, 25), domain.ErrEstimateOutOfRange)

	// Not in work yet.
	assert.ErrorIs(t, f.svc.SetEstimate(ctx, order.ID, 4), domain.ErrInvalidTransition)

	require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))
	require.NoError(t, f.svc.SetEstimate(ctx, order.ID, 4))

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EstimatedHours)
	assert.Equal(t, 4, *stored.EstimatedHours)
}

func TestLifecycleEventsPublished(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))
	require.NoError(t, f.svc.CloseWork(ctx, order.ID, "contractor-1"))

	assert.Equal(t, []events.EventType{
		events.EventOrderCreated,
		events.EventOrderTaken,
		events.EventOrderClosed,
	}, f.dispatcher.types())
}

func TestInWorkOrderOfClient(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	f.addPaidClient("client-1")

	order, err := f.svc.CreateOrder(ctx, "client-1", "task", "")
	require.NoError(t, err)

	// Still waiting for a contractor.
	_, err = f.svc.InWorkOrderOfClient(ctx, "client-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.TakeInWork(ctx, order.ID, "contractor-1"))
	got, err := f.svc.InWorkOrderOfClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}
