package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/supportdesk/orderbot/internal/domain"
)

func orderLine(n int, order domain.Order) string {
	return fmt.Sprintf("%d. %s", n, order.Task)
}

func numberedTake(n int) string {
	return fmt.Sprintf("Take order %d", n)
}

func (b *Bot) handleTake(ctx context.Context, c tele.Context, party *domain.Party, orderID string) error {
	if party.Role != domain.RoleContractor {
		return c.Respond(&tele.CallbackResponse{Text: "Contractors only"})
	}
	if _, err := b.deps.Lifecycle.InWorkOrderOfContractor(ctx, party.ID); err == nil {
		return c.Respond(&tele.CallbackResponse{Text: "Finish your current order first"})
	} else if !errors.Is(err, domain.ErrNotFound) {
		b.deps.Logger.Error("check contractor load failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: somethingWrongNotice})
	}

	err := b.deps.Lifecycle.TakeInWork(ctx, orderID, party.ID)
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Respond(&tele.CallbackResponse{Text: "Someone else took this order"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "This order no longer exists"})
	case err != nil:
		b.deps.Logger.Error("take order failed",
			zap.String("order_id", orderID), zap.String("party_id", party.ID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: somethingWrongNotice})
	}

	order, err := b.deps.Lifecycle.Order(ctx, orderID)
	if err != nil {
		b.deps.Logger.Error("load taken order failed", zap.String("order_id", orderID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Taken"})
	}

	text := "The order is yours:\n" + order.Task
	if order.Creds != "" {
		text += "\n\nAccess credentials:\n" + order.Creds
	}
	text += "\n\nSend /estimate to record how long it will take, /done when finished."
	if err := c.Send(text); err != nil {
		b.deps.Logger.Warn("send take confirmation failed", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: "Taken"})
}

func (b *Bot) handleEstimatePrompt(ctx context.Context, c tele.Context, party *domain.Party) error {
	if _, err := b.currentOrder(ctx, c, party); err != nil {
		return nil
	}
	b.setState(ctx, party, stateContractorEstim)
	return c.Send(fmt.Sprintf("How many hours will the work take? Send a number from %d to %d.",
		domain.MinEstimatedHours, domain.MaxEstimatedHours))
}

func (b *Bot) contractorText(ctx context.Context, c tele.Context, party *domain.Party) error {
	if stateIs(party, stateContractorEstim) {
		return b.contractorEstimateStep(ctx, c, party)
	}
	return b.contractorRelay(ctx, c, party)
}

func (b *Bot) contractorEstimateStep(ctx context.Context, c tele.Context, party *domain.Party) error {
	hours, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil {
		return c.Send("Send the estimate as a plain number of hours.")
	}

	order, err := b.deps.Lifecycle.InWorkOrderOfContractor(ctx, party.ID)
	if err != nil {
		b.clearState(ctx, party)
		if errors.Is(err, domain.ErrNotFound) {
			return c.Send(expiredSessionNotice)
		}
		b.deps.Logger.Error("load contractor order failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}

	if err := b.deps.Lifecycle.SetEstimate(ctx, order.ID, hours); err != nil {
		if errors.Is(err, domain.ErrEstimateOutOfRange) {
			return c.Send(fmt.Sprintf("The estimate must be between %d and %d hours.",
				domain.MinEstimatedHours, domain.MaxEstimatedHours))
		}
		b.clearState(ctx, party)
		b.deps.Logger.Error("set estimate failed", zap.String("order_id", order.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	b.clearState(ctx, party)
	return c.Send(fmt.Sprintf("Recorded: %d h. The client will see it.", hours))
}

func (b *Bot) handleDone(ctx context.Context, c tele.Context, party *domain.Party) error {
	order, err := b.currentOrder(ctx, c, party)
	if err != nil {
		return nil
	}
	if err := b.deps.Lifecycle.CloseWork(ctx, order.ID, party.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return c.Send("That order is no longer in work.")
		}
		b.deps.Logger.Error("close order failed", zap.String("order_id", order.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	return c.Send("Order closed. Thank you.")
}

func (b *Bot) handleLeave(ctx context.Context, c tele.Context, party *domain.Party) error {
	if err := b.deps.Registry.DeactivateContractor(ctx, party.ID); err != nil {
		b.deps.Logger.Error("deactivate contractor failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	return c.Send("You are off the roster. Any order you held went back to the open pool.")
}

func (b *Bot) contractorRelay(ctx context.Context, c tele.Context, party *domain.Party) error {
	order, err := b.deps.Lifecycle.InWorkOrderOfContractor(ctx, party.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Send("Use /start for the command list.")
	}
	if err != nil {
		b.deps.Logger.Error("load contractor order failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	return b.relay(ctx, c, party, order.ClientID)
}

// currentOrder loads the contractor's in-work order, replying directly when
// there is none.
func (b *Bot) currentOrder(ctx context.Context, c tele.Context, party *domain.Party) (*domain.Order, error) {
	order, err := b.deps.Lifecycle.InWorkOrderOfContractor(ctx, party.ID)
	if errors.Is(err, domain.ErrNotFound) {
		_ = c.Send("You have no order in work. See /orders.")
		return nil, err
	}
	if err != nil {
		b.deps.Logger.Error("load contractor order failed", zap.String("party_id", party.ID), zap.Error(err))
		_ = c.Send(somethingWrongNotice)
		return nil, err
	}
	return order, nil
}
