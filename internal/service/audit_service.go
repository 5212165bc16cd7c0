package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/supportdesk/orderbot/internal/events"
	"github.com/supportdesk/orderbot/internal/observability"
)

// AuditService records every lifecycle event in the structured log and in the
// metrics counters. Purely observational; chat notifications are driven by
// the sweep engine, not by events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// RegisterHandlers subscribes to all lifecycle events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventOrderCreated,
		events.EventOrderTaken,
		events.EventOrderClosed,
		events.EventOrderCancelled,
		events.EventContractorReserved,
		events.EventContractorDeactivated,
	} {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	a.logger.Info("domain event",
		zap.String("type", string(event.Type)),
		zap.String("order_id", event.OrderID),
		zap.String("actor_id", event.ActorID),
		zap.String("actor_role", string(event.ActorRole)),
		zap.Any("payload", event.Payload))
	a.metrics.RecordEvent(string(event.Type))
	return nil
}
