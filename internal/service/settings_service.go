package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/repository"
)

// SettingsProvider exposes the current typed policy snapshot to the engine.
type SettingsProvider interface {
	Current() domain.RuntimeSettings
}

// SettingsService turns the sparse system_settings table into a typed
// snapshot with documented defaults, refreshed on a bounded interval instead
// of per-call string lookups. A missing key or an unparsable value never
// fails the calling operation.
type SettingsService struct {
	repo   repository.SettingsRepository
	logger *zap.Logger

	mu      sync.RWMutex
	current domain.RuntimeSettings
}

// NewSettingsService constructs the service primed with defaults.
func NewSettingsService(repo repository.SettingsRepository, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:    repo,
		logger:  logger,
		current: domain.DefaultSettings(),
	}
}

// Current returns the latest snapshot.
func (s *SettingsService) Current() domain.RuntimeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh reloads all overridable parameters from the store.
func (s *SettingsService) Refresh(ctx context.Context) {
	defaults := domain.DefaultSettings()
	next := domain.RuntimeSettings{
		BillingDay:       s.intSetting(ctx, domain.SettingBillingDay, defaults.BillingDay),
		AssignedWindow:   s.percentSetting(ctx, domain.SettingAssignedWindow, defaults.AssignedWindow),
		WarningThreshold: s.percentSetting(ctx, domain.SettingWarningThreshold, defaults.WarningThreshold),
		WorkDeadline:     time.Duration(s.intSetting(ctx, domain.SettingWorkDeadlineHours, 24)) * time.Hour,
	}
	if next.BillingDay < 1 || next.BillingDay > 28 {
		next.BillingDay = defaults.BillingDay
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

// StartRefresh keeps the snapshot current until the context is cancelled.
func (s *SettingsService) StartRefresh(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()
}

// List returns all override rows for the admin surface.
func (s *SettingsService) List(ctx context.Context) ([]domain.Setting, error) {
	return s.repo.List(ctx)
}

// Override writes one parameter and refreshes the snapshot immediately.
func (s *SettingsService) Override(ctx context.Context, setting domain.Setting) error {
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

func (s *SettingsService) intSetting(ctx context.Context, name string, fallback int) int {
	raw, err := s.repo.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("settings read failed", zap.String("parameter", name), zap.Error(err))
		}
		return fallback
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn("unparsable setting, using default",
			zap.String("parameter", name), zap.String("value", raw))
		return fallback
	}
	return parsed
}

// percentSetting reads a whole-number percent ("20" means 20%) as a fraction.
func (s *SettingsService) percentSetting(ctx context.Context, name string, fallback float64) float64 {
	percent := s.intSetting(ctx, name, -1)
	if percent < 0 || percent > 100 {
		return fallback
	}
	return float64(percent) / 100
}
