package dto

import "time"

// LoginRequest carries the owner password.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse returns the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SettingResponse is one override row with its effective value context.
type SettingResponse struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// SettingOverrideRequest writes one policy parameter.
type SettingOverrideRequest struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// EffectiveSettingsResponse is the typed snapshot the engine is running on.
type EffectiveSettingsResponse struct {
	BillingDay       int     `json:"billing_day"`
	AssignedWindow   float64 `json:"assigned_window"`
	WarningThreshold float64 `json:"warning_threshold"`
	WorkDeadlineHrs  float64 `json:"work_deadline_hours"`
}

// SettingsResponse combines overrides and the effective snapshot.
type SettingsResponse struct {
	Overrides []SettingResponse         `json:"overrides"`
	Effective EffectiveSettingsResponse `json:"effective"`
}

// TariffResponse is one catalog entry.
type TariffResponse struct {
	ID                       string  `json:"id"`
	Name                     string  `json:"name"`
	OrdersLimit              int     `json:"orders_limit"`
	ReactionTimeMinutes      int     `json:"reaction_time_minutes"`
	CanReserveContractor     bool    `json:"can_reserve_contractor"`
	CanSeeContractorContacts bool    `json:"can_see_contractor_contacts"`
	Price                    float64 `json:"price"`
}
