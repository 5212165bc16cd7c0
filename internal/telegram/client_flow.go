package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/supportdesk/orderbot/internal/domain"
)

// noCredsMarker lets a client skip the credentials step.
const noCredsMarker = "-"

func (b *Bot) handleNewOrder(ctx context.Context, c tele.Context, party *domain.Party) error {
	// Surface quota and payment problems before asking the client to type
	// out the whole task.
	client, err := b.deps.Registry.Client(ctx, party.ID)
	if err != nil {
		b.deps.Logger.Error("load client failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	if !client.Paid {
		return c.Send("Your tariff is unpaid. Settle the invoice first.")
	}
	if _, err := b.deps.Lifecycle.ActiveOrderOfClient(ctx, party.ID); err == nil {
		return c.Send("You already have an order in progress. Check /status or /cancel it first.")
	} else if !errors.Is(err, domain.ErrNotFound) {
		b.deps.Logger.Error("check active order failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}

	b.setState(ctx, party, stateClientTask)
	return c.Send("Describe the task in one message.")
}

func (b *Bot) clientText(ctx context.Context, c tele.Context, party *domain.Party) error {
	switch {
	case stateIs(party, stateClientTask):
		return b.clientTaskStep(ctx, c, party)
	case stateIs(party, stateClientCreds):
		return b.clientCredsStep(ctx, c, party)
	default:
		return b.clientRelay(ctx, c, party)
	}
}

func (b *Bot) clientTaskStep(ctx context.Context, c tele.Context, party *domain.Party) error {
	task := strings.TrimSpace(c.Text())
	if task == "" {
		return c.Send("The task description cannot be empty. Try again.")
	}
	if err := b.deps.Drafts.SaveTask(ctx, party.ID, task); err != nil {
		b.deps.Logger.Error("save draft failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	b.setState(ctx, party, stateClientCreds)
	return c.Send("Now send access credentials for the task, or \"" + noCredsMarker + "\" if none are needed.")
}

func (b *Bot) clientCredsStep(ctx context.Context, c tele.Context, party *domain.Party) error {
	task, err := b.deps.Drafts.TakeTask(ctx, party.ID)
	if err != nil {
		b.deps.Logger.Error("load draft failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	b.clearState(ctx, party)
	if task == "" {
		return c.Send(expiredSessionNotice)
	}

	creds := strings.TrimSpace(c.Text())
	if creds == noCredsMarker {
		creds = ""
	}
	order, err := b.deps.Lifecycle.CreateOrder(ctx, party.ID, task, creds)
	if err != nil {
		return c.Send(createOrderNotice(err))
	}
	b.deps.Logger.Info("order created via bot",
		zap.String("order_id", order.ID), zap.String("client_id", party.ID))
	return c.Send("Order accepted. Contractors are being notified; you will hear back here.")
}

func createOrderNotice(err error) string {
	switch {
	case errors.Is(err, domain.ErrPaymentRequired):
		return "Your tariff is unpaid. Settle the invoice first."
	case errors.Is(err, domain.ErrActiveOrderExists):
		return "You already have an order in progress. Check /status or /cancel it first."
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "You have used up this month's order quota for your tariff."
	default:
		return somethingWrongNotice
	}
}

func (b *Bot) handleStatus(ctx context.Context, c tele.Context, party *domain.Party) error {
	order, err := b.deps.Lifecycle.ActiveOrderOfClient(ctx, party.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Send("You have no order in progress. Send /new to submit one.")
	}
	if err != nil {
		b.deps.Logger.Error("load active order failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}

	if order.Status == domain.OrderStatusCreated {
		return c.Send("Your order is waiting for a contractor:\n" + order.Task)
	}
	text := "Your order is in work:\n" + order.Task
	if order.ContractorID != nil {
		if contractor, err := b.deps.Registry.Party(ctx, *order.ContractorID); err == nil {
			text += "\n\nContractor: @" + contractor.Nick
		}
	}
	if order.EstimatedHours != nil {
		text += fmt.Sprintf("\nEstimated time: %d h", *order.EstimatedHours)
	}
	return c.Send(text)
}

func (b *Bot) handleCancel(ctx context.Context, c tele.Context, party *domain.Party) error {
	// Cancelling mid-dialog just abandons the draft.
	if stateIs(party, stateClientTask) || stateIs(party, stateClientCreds) {
		b.deps.Drafts.Clear(ctx, party.ID)
		b.clearState(ctx, party)
		return c.Send("Draft discarded.")
	}

	order, err := b.deps.Lifecycle.ActiveOrderOfClient(ctx, party.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Send("You have no order to cancel.")
	}
	if err != nil {
		b.deps.Logger.Error("load active order failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	if err := b.deps.Lifecycle.CancelWork(ctx, order.ID, party.ID); err != nil {
		b.deps.Logger.Error("cancel order failed", zap.String("order_id", order.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	return c.Send("Order cancelled.")
}

func (b *Bot) handleBind(ctx context.Context, c tele.Context, party *domain.Party) error {
	contractor, alreadyBound, err := b.deps.Reservation.ReserveLastContractor(ctx, party.ID)
	switch {
	case errors.Is(err, domain.ErrTariffForbids):
		return c.Send("Your tariff does not include contractor reservation.")
	case errors.Is(err, domain.ErrNoClosedOrders):
		return c.Send("Reservation needs at least one completed order.")
	case err != nil:
		b.deps.Logger.Error("reserve contractor failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	if alreadyBound {
		return c.Send("@" + contractor.Nick + " is already reserved for you.")
	}
	return c.Send("Reserved @" + contractor.Nick + ". They will see your new orders first.")
}

func (b *Bot) handleHelped(ctx context.Context, c tele.Context, party *domain.Party) error {
	contractors, err := b.deps.Reservation.HelpedContractors(ctx, party.ID)
	if errors.Is(err, domain.ErrTariffForbids) {
		return c.Send("Your tariff does not include contractor contacts.")
	}
	if err != nil {
		b.deps.Logger.Error("list helped contractors failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	if len(contractors) == 0 {
		return c.Send("No contractors have completed your orders yet.")
	}
	var text strings.Builder
	text.WriteString("Contractors who helped you:\n")
	for _, contractor := range contractors {
		text.WriteString("• @" + contractor.Nick + "\n")
	}
	return c.Send(text.String())
}

// clientRelay forwards plain text to the contractor working on the client's
// order, so the two sides can talk without exposing contact details.
func (b *Bot) clientRelay(ctx context.Context, c tele.Context, party *domain.Party) error {
	order, err := b.deps.Lifecycle.InWorkOrderOfClient(ctx, party.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Send("Use /start for the command list.")
	}
	if err != nil {
		b.deps.Logger.Error("load in-work order failed", zap.String("party_id", party.ID), zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	if order.ContractorID == nil {
		return c.Send("Use /start for the command list.")
	}
	return b.relay(ctx, c, party, *order.ContractorID)
}

// relay delivers the sender's text to the counterparty's chat.
func (b *Bot) relay(ctx context.Context, c tele.Context, from *domain.Party, toPartyID string) error {
	to, err := b.deps.Registry.Party(ctx, toPartyID)
	if err != nil || to.ChatID == nil {
		return c.Send("The other side is not reachable right now.")
	}
	text := "Message from @" + from.Nick + ":\n" + c.Text()
	if err := b.Gateway().Send(ctx, *to.ChatID, text); err != nil {
		b.deps.Logger.Warn("relay failed", zap.String("to_party_id", toPartyID), zap.Error(err))
		return c.Send("The other side is not reachable right now.")
	}
	return c.Send("Delivered.")
}
