package events

import (
	"time"

	"github.com/supportdesk/orderbot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOrderCreated          EventType = "order_created"
	EventOrderTaken            EventType = "order_taken"
	EventOrderClosed           EventType = "order_closed"
	EventOrderCancelled        EventType = "order_cancelled"
	EventContractorReserved    EventType = "contractor_reserved"
	EventContractorDeactivated EventType = "contractor_deactivated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrderID   string      `json:"order_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	ActorRole domain.Role `json:"actor_role"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	ClientID string `json:"client_id"`
	TariffID string `json:"tariff_id"`
}

// OrderTakenPayload payload.
type OrderTakenPayload struct {
	ContractorID string `json:"contractor_id"`
}

// OrderFinishedPayload payload for close and cancel.
type OrderFinishedPayload struct {
	Status domain.OrderStatus `json:"status"`
}

// ContractorReservedPayload payload.
type ContractorReservedPayload struct {
	ClientID     string `json:"client_id"`
	ContractorID string `json:"contractor_id"`
	AlreadyBound bool   `json:"already_bound"`
}

// ContractorDeactivatedPayload payload.
type ContractorDeactivatedPayload struct {
	ContractorID string `json:"contractor_id"`
}
