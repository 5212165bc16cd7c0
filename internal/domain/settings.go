package domain

import "time"

// Setting is one row of the sparse system_settings override table.
type Setting struct {
	Name        string
	Value       string
	Description string
}

// Setting parameter names the engine reads. Percent-valued parameters are
// stored as whole numbers ("20" means 20%).
const (
	SettingBillingDay        = "BILLING_DAY"
	SettingAssignedWindow    = "ASSIGNED_CONTRACTORS_TIME_LIMIT"
	SettingWarningThreshold  = "SLA_WARNING_THRESHOLD"
	SettingWorkDeadlineHours = "WORK_DEADLINE_HOURS"
)

// RuntimeSettings is the typed snapshot of all overridable policy values.
// A missing or unparsable override always falls back to these defaults.
type RuntimeSettings struct {
	// BillingDay is the day of month the billing cycle starts on.
	BillingDay int
	// AssignedWindow is the fraction of the reaction-time SLA during which
	// only reserved contractors are notified about a new order.
	AssignedWindow float64
	// WarningThreshold is the fraction of an SLA limit at which a manager
	// warning fires.
	WarningThreshold float64
	// WorkDeadline is the completion-time limit for orders in work.
	WorkDeadline time.Duration
}

// DefaultSettings returns the documented fallback values.
func DefaultSettings() RuntimeSettings {
	return RuntimeSettings{
		BillingDay:       1,
		AssignedWindow:   0.20,
		WarningThreshold: 0.95,
		WorkDeadline:     24 * time.Hour,
	}
}
