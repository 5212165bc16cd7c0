package domain

import "time"

// OrderStatus enumerates lifecycle states for orders. The only legal
// transitions are created -> in_work -> {closed, cancelled}; closed and
// cancelled are terminal.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusInWork    OrderStatus = "IN_WORK"
	OrderStatusClosed    OrderStatus = "CLOSED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusClosed || s == OrderStatusCancelled
}

// Estimated completion bounds in hours.
const (
	MinEstimatedHours = 1
	MaxEstimatedHours = 24
)

// ValidEstimate reports whether an estimated completion time is in range.
func ValidEstimate(hours int) bool {
	return hours >= MinEstimatedHours && hours <= MaxEstimatedHours
}

// Order is the aggregate for a support request. The informed flags are
// one-shot idempotency latches: sweeps set them after a successful
// notification batch so a re-run never notifies twice.
type Order struct {
	ID           string
	Task         string
	ClientID     string
	ContractorID *string
	Status       OrderStatus
	CreatedAt    time.Time
	AssignedAt   *time.Time
	ClosedAt     *time.Time

	NotTakenManagerInformed     bool
	LateWorkManagerInformed     bool
	InWorkClientInformed        bool
	ClosedClientInformed        bool
	AssignedContractorsInformed bool
	AllContractorsInformed      bool

	// Creds holds the client's access credentials for the task, erased on
	// close/cancel. Stored as plaintext for now.
	// TODO: encrypt credentials at rest before any production rollout.
	Creds          string
	EstimatedHours *int
}

// OrderView is an order joined with the client/contractor/tariff fields the
// sweep engine needs to build notifications without extra lookups.
type OrderView struct {
	Order
	ClientNick          string
	ClientChatID        *int64
	ReactionTimeMinutes int
	ContractorNick      string
	ContractorChatID    *int64
}
