package domain

import "errors"

// Business-rule and lifecycle sentinels. Services return these unchanged so
// callers can branch with errors.Is; the conversation layer maps them to
// user-facing replies and the admin API maps them to HTTP statuses.
var (
	// ErrInvalidTransition rejects a lifecycle move the current status forbids.
	// The order is left untouched.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrQuotaExceeded rejects order creation past the tariff's monthly quota.
	ErrQuotaExceeded = errors.New("monthly order quota exceeded")

	// ErrActiveOrderExists rejects order creation while another order of the
	// client is still created or in work.
	ErrActiveOrderExists = errors.New("client already has an active order")

	// ErrPaymentRequired rejects order creation for clients with an unpaid tariff.
	ErrPaymentRequired = errors.New("tariff is not paid")

	// ErrUnknownParty means neither chat id nor nickname resolved to an active
	// party; callers route this to the unauthenticated flow.
	ErrUnknownParty = errors.New("unknown party")

	// ErrNoClosedOrders rejects contractor reservation before the first closed order.
	ErrNoClosedOrders = errors.New("client has no closed orders")

	// ErrTariffForbids rejects an operation the client's tariff does not include.
	ErrTariffForbids = errors.New("tariff does not include this capability")

	// ErrEstimateOutOfRange rejects estimated completion times outside 1-24 hours.
	ErrEstimateOutOfRange = errors.New("estimated hours out of range")

	// ErrNotFound is the generic missing-record sentinel.
	ErrNotFound = errors.New("record not found")
)
