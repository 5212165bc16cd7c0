package domain

import "time"

// Tariff is immutable reference data describing plan limits for clients.
type Tariff struct {
	ID                       string
	Name                     string
	OrdersLimit              int
	ReactionTimeMinutes      int
	CanReserveContractor     bool
	CanSeeContractorContacts bool
	Price                    float64
}

// ReactionLimit returns the reaction-time SLA as a duration.
func (t Tariff) ReactionLimit() time.Duration {
	return time.Duration(t.ReactionTimeMinutes) * time.Minute
}
