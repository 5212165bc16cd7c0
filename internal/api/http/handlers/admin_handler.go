package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/orderbot/internal/api/dto"
	"github.com/supportdesk/orderbot/internal/auth"
	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/observability"
	"github.com/supportdesk/orderbot/internal/repository"
	"github.com/supportdesk/orderbot/internal/service"
	apperrors "github.com/supportdesk/orderbot/pkg/util/errorutil"
)

// AdminHandler serves the owner's operational API: login, policy overrides,
// the tariff catalog, metrics and billing statistics.
type AdminHandler struct {
	passwordHash string
	tokens       *auth.TokenManager
	settings     *service.SettingsService
	stats        *service.StatsService
	tariffs      repository.TariffRepository
	metrics      *observability.Metrics
}

// NewAdminHandler returns a new handler instance.
func NewAdminHandler(
	passwordHash string,
	tokens *auth.TokenManager,
	settings *service.SettingsService,
	stats *service.StatsService,
	tariffs repository.TariffRepository,
	metrics *observability.Metrics,
) *AdminHandler {
	return &AdminHandler{
		passwordHash: passwordHash,
		tokens:       tokens,
		settings:     settings,
		stats:        stats,
		tariffs:      tariffs,
		metrics:      metrics,
	}
}

// Login exchanges the owner password for a bearer token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if h.passwordHash == "" {
		return apperrors.NewForbidden("admin access is not configured")
	}
	if err := auth.ComparePassword(h.passwordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// Settings returns the override rows and the effective runtime snapshot.
func (h *AdminHandler) Settings(c *fiber.Ctx) error {
	overrides, err := h.settings.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}

	rows := make([]dto.SettingResponse, 0, len(overrides))
	for _, s := range overrides {
		rows = append(rows, dto.SettingResponse{Name: s.Name, Value: s.Value, Description: s.Description})
	}
	current := h.settings.Current()
	return c.JSON(dto.SettingsResponse{
		Overrides: rows,
		Effective: dto.EffectiveSettingsResponse{
			BillingDay:       current.BillingDay,
			AssignedWindow:   current.AssignedWindow,
			WarningThreshold: current.WarningThreshold,
			WorkDeadlineHrs:  current.WorkDeadline.Hours(),
		},
	})
}

var knownSettings = map[string]struct{}{
	domain.SettingBillingDay:        {},
	domain.SettingAssignedWindow:    {},
	domain.SettingWarningThreshold:  {},
	domain.SettingWorkDeadlineHours: {},
}

// OverrideSetting writes one policy parameter and reloads the snapshot.
func (h *AdminHandler) OverrideSetting(c *fiber.Ctx) error {
	name := strings.ToUpper(c.Params("name"))
	if _, ok := knownSettings[name]; !ok {
		return apperrors.NewNotFound("setting", map[string]any{"name": name})
	}

	var req dto.SettingOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Value) == "" {
		return apperrors.NewValidationError("value must not be empty", nil)
	}

	setting := domain.Setting{Name: name, Value: req.Value, Description: req.Description}
	if err := h.settings.Override(c.UserContext(), setting); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Tariffs lists the catalog.
func (h *AdminHandler) Tariffs(c *fiber.Ctx) error {
	tariffs, err := h.tariffs.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	rows := make([]dto.TariffResponse, 0, len(tariffs))
	for _, t := range tariffs {
		rows = append(rows, dto.TariffResponse{
			ID:                       t.ID,
			Name:                     t.Name,
			OrdersLimit:              t.OrdersLimit,
			ReactionTimeMinutes:      t.ReactionTimeMinutes,
			CanReserveContractor:     t.CanReserveContractor,
			CanSeeContractorContacts: t.CanSeeContractorContacts,
			Price:                    t.Price,
		})
	}
	return c.JSON(fiber.Map{"tariffs": rows})
}

// Metrics returns the in-process counter snapshot.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}

// OrderStats returns per-client order counts per billing cycle.
func (h *AdminHandler) OrderStats(c *fiber.Ctx) error {
	cycles, err := h.stats.MonthlyOrderStats(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"cycles": cycles})
}

// Billing returns the previous cycle's closed-order counts per contractor.
func (h *AdminHandler) Billing(c *fiber.Ctx) error {
	billing, err := h.stats.PreviousCycleBilling(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(billing)
}
