// Package sweep runs the periodic SLA and notification passes over the order
// store. Every pass is idempotent: each effect is guarded by a latch flag on
// the order row, so restarting the process never repeats a notification.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/supportdesk/orderbot/internal/gateway"
	"github.com/supportdesk/orderbot/internal/observability"
	"github.com/supportdesk/orderbot/internal/repository"
	"github.com/supportdesk/orderbot/internal/service"
)

// Dependencies bundles what the sweeper needs.
type Dependencies struct {
	Orders   repository.OrderRepository
	Parties  repository.PartyRepository
	Settings service.SettingsProvider
	Gateway  gateway.Gateway
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Now      func() time.Time
}

// Sweeper owns the four periodic passes. All passes share one cadence and
// start at staggered offsets so they do not hit the database together.
type Sweeper struct {
	deps Dependencies
}

func NewSweeper(deps Dependencies) *Sweeper {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Sweeper{deps: deps}
}

// Start launches one goroutine per pass. They stop when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration, offsets Offsets) {
	go s.loop(ctx, "unassigned", offsets.Unassigned, interval, s.SweepUnassigned)
	go s.loop(ctx, "overdue", offsets.Overdue, interval, s.SweepOverdue)
	go s.loop(ctx, "fanout", offsets.Fanout, interval, s.SweepFanout)
	go s.loop(ctx, "client_update", offsets.ClientUpdate, interval, s.SweepClientUpdates)
}

// Offsets are the initial delays before each pass first runs.
type Offsets struct {
	Unassigned   time.Duration
	Overdue      time.Duration
	Fanout       time.Duration
	ClientUpdate time.Duration
}

func (s *Sweeper) loop(ctx context.Context, name string, offset, interval time.Duration, pass func(context.Context) error) {
	timer := time.NewTimer(offset)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.runPass(ctx, name, pass)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx, name, pass)
		}
	}
}

func (s *Sweeper) runPass(ctx context.Context, name string, pass func(context.Context) error) {
	if err := pass(ctx); err != nil {
		s.deps.Logger.Error("sweep pass failed", zap.String("sweep", name), zap.Error(err))
	}
}

// deliver sends one message and absorbs the failure. A recipient without a
// chat id or with a dead chat costs a dropped-notification counter, nothing
// else: the batch keeps going and the latch is still set.
func (s *Sweeper) deliver(ctx context.Context, chatID *int64, kind, text string) {
	if chatID == nil {
		s.deps.Metrics.RecordNotificationDrop(kind)
		return
	}
	if err := s.deps.Gateway.Send(ctx, *chatID, text); err != nil {
		s.deps.Logger.Warn("notification dropped",
			zap.String("kind", kind),
			zap.Int64("chat_id", *chatID),
			zap.Error(err))
		s.deps.Metrics.RecordNotificationDrop(kind)
		return
	}
	s.deps.Metrics.RecordNotification(kind)
}
