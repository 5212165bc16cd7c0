package service

import (
	"context"
	"time"

	"github.com/supportdesk/orderbot/internal/repository"
)

// CycleStats aggregates order counts per client for one billing cycle.
type CycleStats struct {
	CycleStart time.Time                     `json:"cycle_start"`
	Clients    []repository.ClientOrderCount `json:"clients"`
	Total      int                           `json:"total"`
}

// ContractorBilling lists closed-order counts per contractor for the
// previous billing cycle.
type ContractorBilling struct {
	CycleStart  time.Time                         `json:"cycle_start"`
	Contractors []repository.ContractorOrderCount `json:"contractors"`
}

// StatsService computes the owner's read-only aggregates. No invoices are
// generated here; these numbers feed the manual billing process.
type StatsService struct {
	orders   repository.OrderRepository
	settings SettingsProvider
	now      func() time.Time
}

// NewStatsService constructs the service.
func NewStatsService(orders repository.OrderRepository, settings SettingsProvider, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{orders: orders, settings: settings, now: now}
}

// MonthlyOrderStats walks billing cycles backwards from the current one to
// the first non-cancelled order and counts orders per client in each.
func (s *StatsService) MonthlyOrderStats(ctx context.Context) ([]CycleStats, error) {
	first, err := s.orders.FirstOrderAt(ctx)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}

	cycleStart := BillingCycleStart(s.now(), s.settings.Current().BillingDay)

	var stats []CycleStats
	for from := cycleStart.AddDate(0, -1, 0); ; from = from.AddDate(0, -1, 0) {
		to := from.AddDate(0, 1, 0)
		counts, err := s.orders.ClientCountsBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		if to.Before(*first) && len(counts) == 0 {
			break
		}
		cycle := CycleStats{CycleStart: from, Clients: counts}
		for _, row := range counts {
			cycle.Total += row.Count
		}
		stats = append(stats, cycle)
	}
	return stats, nil
}

// PreviousCycleBilling counts closed orders per contractor for the previous
// billing cycle.
func (s *StatsService) PreviousCycleBilling(ctx context.Context) (*ContractorBilling, error) {
	cycleStart := BillingCycleStart(s.now(), s.settings.Current().BillingDay)
	from := cycleStart.AddDate(0, -1, 0)

	counts, err := s.orders.ContractorClosedCountsBetween(ctx, from, cycleStart)
	if err != nil {
		return nil, err
	}
	return &ContractorBilling{CycleStart: from, Contractors: counts}, nil
}
