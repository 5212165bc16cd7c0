package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/supportdesk/orderbot/internal/domain"
)

// SweepFanout announces created orders to contractors. Clients on a tariff
// with reserved contractors buy those contractors a head start: until the
// configured fraction of the reaction-time SLA has elapsed, only reserved
// contractors hear about the order. After that the announcement goes wide.
func (s *Sweeper) SweepFanout(ctx context.Context) error {
	settings := s.deps.Settings.Current()
	views, err := s.deps.Orders.ListFanoutCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list fanout candidates: %w", err)
	}
	if len(views) == 0 {
		s.deps.Metrics.RecordSweep("fanout", 0)
		return nil
	}

	available, err := s.deps.Parties.ListAvailableContractors(ctx)
	if err != nil {
		return fmt.Errorf("list available contractors: %w", err)
	}

	now := s.deps.Now()
	announced := 0
	for _, v := range views {
		reserved, err := s.deps.Parties.ReservedContractors(ctx, v.ClientID)
		if err != nil {
			s.deps.Logger.Error("list reserved contractors failed",
				zap.String("order_id", v.ID), zap.Error(err))
			continue
		}

		text := announcement(v)
		switch {
		case len(reserved) == 0:
			for _, c := range available {
				s.deliver(ctx, c.ChatID, "fanout", text)
			}
			if err := s.deps.Orders.MarkAllInformed(ctx, v.ID); err != nil {
				s.deps.Logger.Error("mark all informed failed",
					zap.String("order_id", v.ID), zap.Error(err))
				continue
			}
			announced++

		case insideWindow(now, v, settings.AssignedWindow):
			if v.AssignedContractorsInformed {
				continue
			}
			for _, c := range reserved {
				s.deliver(ctx, c.ChatID, "fanout_reserved", text)
			}
			if err := s.deps.Orders.MarkAssignedInformed(ctx, v.ID); err != nil {
				s.deps.Logger.Error("mark assigned informed failed",
					zap.String("order_id", v.ID), zap.Error(err))
				continue
			}
			announced++

		default:
			// The window has passed. Reserved contractors who were never
			// reached (no sweep ran inside the window) are included here so
			// the assigned latch is honest.
			reservedIDs := make(map[string]struct{}, len(reserved))
			for _, c := range reserved {
				reservedIDs[c.ID] = struct{}{}
			}
			for _, c := range available {
				if _, ok := reservedIDs[c.ID]; ok {
					continue
				}
				s.deliver(ctx, c.ChatID, "fanout", text)
			}
			if !v.AssignedContractorsInformed {
				for _, c := range reserved {
					s.deliver(ctx, c.ChatID, "fanout_reserved", text)
				}
			}
			if err := s.deps.Orders.MarkAllInformed(ctx, v.ID); err != nil {
				s.deps.Logger.Error("mark all informed failed",
					zap.String("order_id", v.ID), zap.Error(err))
				continue
			}
			announced++
		}
	}
	s.deps.Metrics.RecordSweep("fanout", announced)
	return nil
}

// insideWindow reports whether the order is still in the reserved-only phase.
// window is a fraction of the tariff's reaction-time SLA.
func insideWindow(now time.Time, v domain.OrderView, window float64) bool {
	limit := time.Duration(v.ReactionTimeMinutes) * time.Minute
	if limit <= 0 {
		return false
	}
	return fraction(now.Sub(v.CreatedAt), limit) < window
}

func announcement(v domain.OrderView) string {
	return fmt.Sprintf("New order available:\n%s\n\nOpen the order list to take it.", v.Task)
}
