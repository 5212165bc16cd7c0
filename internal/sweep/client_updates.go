package sweep

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/supportdesk/orderbot/internal/domain"
)

// SweepClientUpdates tells clients about progress on their orders: once when
// a contractor takes the order and once when it is closed. Both messages are
// one-shots guarded by their own latch.
func (s *Sweeper) SweepClientUpdates(ctx context.Context) error {
	informed := 0

	taken, err := s.deps.Orders.ListInWorkClientUninformed(ctx)
	if err != nil {
		return fmt.Errorf("list in-work uninformed: %w", err)
	}
	for _, v := range taken {
		s.deliver(ctx, v.ClientChatID, "client_in_work", takenMessage(v))
		if err := s.deps.Orders.MarkInWorkClientInformed(ctx, v.ID); err != nil {
			s.deps.Logger.Error("mark in-work informed failed",
				zap.String("order_id", v.ID), zap.Error(err))
			continue
		}
		informed++
	}

	closed, err := s.deps.Orders.ListClosedClientUninformed(ctx)
	if err != nil {
		return fmt.Errorf("list closed uninformed: %w", err)
	}
	for _, v := range closed {
		text := fmt.Sprintf("Your order is done:\n%s\n\nThank you for using the service.", v.Task)
		s.deliver(ctx, v.ClientChatID, "client_closed", text)
		if err := s.deps.Orders.MarkClosedClientInformed(ctx, v.ID); err != nil {
			s.deps.Logger.Error("mark closed informed failed",
				zap.String("order_id", v.ID), zap.Error(err))
			continue
		}
		informed++
	}

	s.deps.Metrics.RecordSweep("client_update", informed)
	return nil
}

func takenMessage(v domain.OrderView) string {
	text := fmt.Sprintf("Your order is in work:\n%s\n\nContractor: @%s", v.Task, v.ContractorNick)
	if v.EstimatedHours != nil {
		text += fmt.Sprintf("\nEstimated time: %d h", *v.EstimatedHours)
	}
	return text
}
