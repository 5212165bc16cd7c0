package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/supportdesk/orderbot/internal/domain"
)

// SweepUnassigned warns managers about created orders that are close to
// missing the tariff's reaction-time SLA. One batched message per manager
// lists every newly flagged order; the not-taken latch makes the warning a
// one-shot per order.
func (s *Sweeper) SweepUnassigned(ctx context.Context) error {
	settings := s.deps.Settings.Current()
	views, err := s.deps.Orders.ListUnassignedUnalerted(ctx)
	if err != nil {
		return fmt.Errorf("list unassigned orders: %w", err)
	}

	now := s.deps.Now()
	var warned []domain.OrderView
	for _, v := range views {
		limit := time.Duration(v.ReactionTimeMinutes) * time.Minute
		if limit <= 0 {
			continue
		}
		if fraction(now.Sub(v.CreatedAt), limit) > settings.WarningThreshold {
			warned = append(warned, v)
		}
	}
	s.deps.Metrics.RecordSweep("unassigned", len(warned))
	if len(warned) == 0 {
		return nil
	}

	var text strings.Builder
	text.WriteString("Orders about to miss their reaction deadline:\n")
	for _, v := range warned {
		fmt.Fprintf(&text, "• %s — client @%s, waiting %s\n",
			v.Task, v.ClientNick, now.Sub(v.CreatedAt).Round(time.Minute))
	}
	s.notifyManagers(ctx, "sla_unassigned", text.String())

	ids := orderIDs(warned)
	if err := s.deps.Orders.MarkNotTakenAlerted(ctx, ids); err != nil {
		return fmt.Errorf("mark not-taken alerted: %w", err)
	}
	return nil
}

// SweepOverdue warns managers about in-work orders approaching the completion
// deadline, measured from assigned_at.
func (s *Sweeper) SweepOverdue(ctx context.Context) error {
	settings := s.deps.Settings.Current()
	views, err := s.deps.Orders.ListOverdueCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list overdue candidates: %w", err)
	}

	now := s.deps.Now()
	var warned []domain.OrderView
	for _, v := range views {
		if v.AssignedAt == nil {
			continue
		}
		if fraction(now.Sub(*v.AssignedAt), settings.WorkDeadline) > settings.WarningThreshold {
			warned = append(warned, v)
		}
	}
	s.deps.Metrics.RecordSweep("overdue", len(warned))
	if len(warned) == 0 {
		return nil
	}

	var text strings.Builder
	text.WriteString("Orders in work past the expected completion window:\n")
	for _, v := range warned {
		fmt.Fprintf(&text, "• %s — contractor @%s, client @%s, in work %s\n",
			v.Task, v.ContractorNick, v.ClientNick, now.Sub(*v.AssignedAt).Round(time.Minute))
	}
	s.notifyManagers(ctx, "sla_overdue", text.String())

	ids := orderIDs(warned)
	if err := s.deps.Orders.MarkLateAlerted(ctx, ids); err != nil {
		return fmt.Errorf("mark late alerted: %w", err)
	}
	return nil
}

func (s *Sweeper) notifyManagers(ctx context.Context, kind, text string) {
	managers, err := s.deps.Parties.ListActiveByRole(ctx, domain.RoleManager)
	if err != nil {
		s.deps.Logger.Error("list managers failed", zap.Error(err))
		return
	}
	for _, m := range managers {
		s.deliver(ctx, m.ChatID, kind, text)
	}
}

func fraction(elapsed, limit time.Duration) float64 {
	if limit <= 0 {
		return 0
	}
	return elapsed.Seconds() / limit.Seconds()
}

func orderIDs(views []domain.OrderView) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}
