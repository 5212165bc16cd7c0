package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/events"
	"github.com/supportdesk/orderbot/internal/repository"
)

// LifecycleService owns the order state machine: creation with quota and
// eligibility checks, contractor pickup, close and cancel. Every transition
// is a single conditional update in the store, so concurrent calls on the
// same order serialize there and the loser gets ErrInvalidTransition.
type LifecycleService struct {
	orders     repository.OrderRepository
	parties    repository.PartyRepository
	settings   SettingsProvider
	dispatcher events.Dispatcher
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the service.
type LifecycleDependencies struct {
	OrderRepo  repository.OrderRepository
	PartyRepo  repository.PartyRepository
	Settings   SettingsProvider
	Dispatcher events.Dispatcher
	// Now overrides the clock in tests; defaults to time.Now.
	Now func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		orders:     deps.OrderRepo,
		parties:    deps.PartyRepo,
		settings:   deps.Settings,
		dispatcher: deps.Dispatcher,
		now:        now,
	}
}

// BillingCycleStart returns the most recent cycle boundary at or before now.
// A now exactly on the boundary belongs to the cycle that starts then.
func BillingCycleStart(now time.Time, billingDay int) time.Time {
	start := time.Date(now.Year(), now.Month(), billingDay, 0, 0, 0, 0, now.Location())
	if start.After(now) {
		start = start.AddDate(0, -1, 0)
	}
	return start
}

// CreateOrder files a new order for the client. Rejections, in check order:
// ErrPaymentRequired for an unpaid tariff, ErrActiveOrderExists while another
// order is created or in work, ErrQuotaExceeded once the tariff's monthly
// quota of non-cancelled orders is reached for the current billing cycle.
func (s *LifecycleService) CreateOrder(ctx context.Context, clientID, task, creds string) (*domain.Order, error) {
	client, err := s.parties.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Paid {
		return nil, domain.ErrPaymentRequired
	}

	if _, err := s.orders.ActiveByClient(ctx, clientID); err == nil {
		return nil, domain.ErrActiveOrderExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	cycleStart := BillingCycleStart(s.now(), s.settings.Current().BillingDay)
	used, err := s.orders.CountCreatedSince(ctx, clientID, cycleStart)
	if err != nil {
		return nil, err
	}
	if used >= client.Tariff.OrdersLimit {
		return nil, domain.ErrQuotaExceeded
	}

	order := &domain.Order{
		Task:     task,
		ClientID: clientID,
		Status:   domain.OrderStatusCreated,
		Creds:    creds,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventOrderCreated,
		OrderID:   order.ID,
		ActorID:   clientID,
		ActorRole: domain.RoleClient,
		Timestamp: s.now(),
		Payload:   events.OrderCreatedPayload{ClientID: clientID, TariffID: client.Tariff.ID},
	})
	return order, nil
}

// TakeInWork assigns the order to a contractor. Only a created order can be
// taken; when two contractors race, exactly one succeeds.
func (s *LifecycleService) TakeInWork(ctx context.Context, orderID, contractorID string) error {
	ok, err := s.orders.TakeInWork(ctx, orderID, contractorID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionFailure(ctx, orderID)
	}

	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventOrderTaken,
		OrderID:   orderID,
		ActorID:   contractorID,
		ActorRole: domain.RoleContractor,
		Timestamp: s.now(),
		Payload:   events.OrderTakenPayload{ContractorID: contractorID},
	})
	return nil
}

// CloseWork finishes an in_work order: terminal, credentials erased.
func (s *LifecycleService) CloseWork(ctx context.Context, orderID, actorID string) error {
	ok, err := s.orders.Close(ctx, orderID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionFailure(ctx, orderID)
	}

	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventOrderClosed,
		OrderID:   orderID,
		ActorID:   actorID,
		ActorRole: domain.RoleContractor,
		Timestamp: s.now(),
		Payload:   events.OrderFinishedPayload{Status: domain.OrderStatusClosed},
	})
	return nil
}

// CancelWork aborts any non-terminal order: terminal, credentials erased.
func (s *LifecycleService) CancelWork(ctx context.Context, orderID, actorID string) error {
	ok, err := s.orders.Cancel(ctx, orderID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionFailure(ctx, orderID)
	}

	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventOrderCancelled,
		OrderID:   orderID,
		ActorID:   actorID,
		ActorRole: domain.RoleClient,
		Timestamp: s.now(),
		Payload:   events.OrderFinishedPayload{Status: domain.OrderStatusCancelled},
	})
	return nil
}

// SetEstimate records the contractor's estimated completion time for an order
// in work. The value is not applied to the completion SLA.
func (s *LifecycleService) SetEstimate(ctx context.Context, orderID string, hours int) error {
	if !domain.ValidEstimate(hours) {
		return domain.ErrEstimateOutOfRange
	}
	ok, err := s.orders.SetEstimate(ctx, orderID, hours)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionFailure(ctx, orderID)
	}
	return nil
}

// AvailableOrders lists orders waiting for a contractor.
func (s *LifecycleService) AvailableOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListOpen(ctx)
}

// ActiveOrderOfClient returns the client's order in created or in_work status.
func (s *LifecycleService) ActiveOrderOfClient(ctx context.Context, clientID string) (*domain.Order, error) {
	return s.orders.ActiveByClient(ctx, clientID)
}

// InWorkOrderOfClient returns the client's order currently being worked on.
func (s *LifecycleService) InWorkOrderOfClient(ctx context.Context, clientID string) (*domain.Order, error) {
	order, err := s.orders.ActiveByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusInWork {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// InWorkOrderOfContractor returns the order the contractor is busy with.
func (s *LifecycleService) InWorkOrderOfContractor(ctx context.Context, contractorID string) (*domain.Order, error) {
	return s.orders.InWorkByContractor(ctx, contractorID)
}

// Order loads one order by id.
func (s *LifecycleService) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// transitionFailure distinguishes a missing order from a forbidden move.
func (s *LifecycleService) transitionFailure(ctx context.Context, orderID string) error {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
