// Package telegram is the session driver: a thin telebot shell that resolves
// the acting party for every update and drives a per-role conversation flow.
// The next conversation step is persisted as an opaque label on the party, so
// a restarted process picks every dialog up where it left off.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/supportdesk/orderbot/internal/config"
	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/gateway"
	"github.com/supportdesk/orderbot/internal/service"
)

// Conversation state labels. Only this package interprets them.
const (
	stateClientTask      = "client:task"
	stateClientCreds     = "client:creds"
	stateContractorEstim = "contractor:estimate"

	handlerTimeout = 15 * time.Second

	unknownPartyNotice   = "This bot works by invitation. Ask the service owner to register your handle."
	expiredSessionNotice = "That conversation expired. Start again from the menu."
	somethingWrongNotice = "Something went wrong, try again in a minute."
)

// Dependencies bundles the services the session driver drives.
type Dependencies struct {
	Registry    *service.RegistryService
	Lifecycle   *service.LifecycleService
	Reservation *service.ReservationService
	Drafts      *DraftStore
	Logger      *zap.Logger
}

// Bot owns the telebot long-poller and the handler tables.
type Bot struct {
	bot  *tele.Bot
	deps Dependencies
}

// New builds the bot and registers its handlers. It does not start polling.
func New(cfg config.TelegramConfig, deps Dependencies) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout()},
	}
	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	b := &Bot{bot: tb, deps: deps}
	b.register()
	return b, nil
}

// Gateway exposes the underlying client as the engine's message transport.
func (b *Bot) Gateway() gateway.Gateway {
	return NewGateway(b.bot)
}

// Start blocks polling for updates until Stop is called.
func (b *Bot) Start() {
	b.deps.Logger.Info("telegram bot polling started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) register() {
	b.bot.Handle("/start", b.withParty(b.handleStart))
	b.bot.Handle("/new", b.withParty(roleOnly(domain.RoleClient, b.handleNewOrder)))
	b.bot.Handle("/status", b.withParty(roleOnly(domain.RoleClient, b.handleStatus)))
	b.bot.Handle("/cancel", b.withParty(roleOnly(domain.RoleClient, b.handleCancel)))
	b.bot.Handle("/bind", b.withParty(roleOnly(domain.RoleClient, b.handleBind)))
	b.bot.Handle("/helped", b.withParty(roleOnly(domain.RoleClient, b.handleHelped)))
	b.bot.Handle("/orders", b.withParty(b.handleOrders))
	b.bot.Handle("/estimate", b.withParty(roleOnly(domain.RoleContractor, b.handleEstimatePrompt)))
	b.bot.Handle("/done", b.withParty(roleOnly(domain.RoleContractor, b.handleDone)))
	b.bot.Handle("/leave", b.withParty(roleOnly(domain.RoleContractor, b.handleLeave)))
	b.bot.Handle(tele.OnText, b.withParty(b.handleText))
	b.bot.Handle(tele.OnCallback, b.withParty(b.handleCallback))
}

type partyHandler func(ctx context.Context, c tele.Context, party *domain.Party) error

// withParty resolves the sender before every handler. Unknown senders get a
// fixed notice and nothing else.
func (b *Bot) withParty(next partyHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		sender := c.Sender()
		if sender == nil {
			return nil
		}
		party, err := b.deps.Registry.ResolveParty(ctx, sender.ID, sender.Username)
		if errors.Is(err, domain.ErrUnknownParty) {
			return c.Send(unknownPartyNotice)
		}
		if err != nil {
			b.deps.Logger.Error("resolve party failed",
				zap.Int64("chat_id", sender.ID), zap.Error(err))
			return c.Send(somethingWrongNotice)
		}
		return next(ctx, c, party)
	}
}

func roleOnly(role domain.Role, next partyHandler) partyHandler {
	return func(ctx context.Context, c tele.Context, party *domain.Party) error {
		if party.Role != role {
			return c.Send("That command is not available for your account.")
		}
		return next(ctx, c, party)
	}
}

func (b *Bot) handleStart(ctx context.Context, c tele.Context, party *domain.Party) error {
	b.clearState(ctx, party)
	switch party.Role {
	case domain.RoleClient:
		return c.Send("Welcome back, @" + party.Nick + ".\n\n" +
			"/new — submit a task\n" +
			"/status — your current order\n" +
			"/cancel — cancel the current order\n" +
			"/bind — reserve your last contractor\n" +
			"/helped — contractors who helped you")
	case domain.RoleContractor:
		return c.Send("Welcome back, @" + party.Nick + ".\n\n" +
			"/orders — open orders\n" +
			"/estimate — record estimated hours\n" +
			"/done — close your current order\n" +
			"/leave — stop taking orders")
	case domain.RoleManager:
		return c.Send("Hello, @" + party.Nick + ". SLA warnings for stuck orders arrive here automatically.\n\n" +
			"/orders — currently open orders")
	default:
		return c.Send("Hello, @" + party.Nick + ". Statistics and settings live in the admin API.")
	}
}

// handleOrders serves both contractors and managers: the same open-order
// listing, with take buttons only for contractors.
func (b *Bot) handleOrders(ctx context.Context, c tele.Context, party *domain.Party) error {
	if party.Role != domain.RoleContractor && party.Role != domain.RoleManager {
		return c.Send("That command is not available for your account.")
	}
	orders, err := b.deps.Lifecycle.AvailableOrders(ctx)
	if err != nil {
		b.deps.Logger.Error("list open orders failed", zap.Error(err))
		return c.Send(somethingWrongNotice)
	}
	if len(orders) == 0 {
		return c.Send("No open orders right now.")
	}

	var text strings.Builder
	text.WriteString("Open orders:\n")
	var rows [][]tele.InlineButton
	for i, order := range orders {
		text.WriteString("\n")
		text.WriteString(orderLine(i+1, order))
		if party.Role == domain.RoleContractor {
			rows = append(rows, []tele.InlineButton{{
				Text: numberedTake(i + 1),
				Data: "take:" + order.ID,
			}})
		}
	}
	if len(rows) == 0 {
		return c.Send(text.String())
	}
	return c.Send(text.String(), &tele.ReplyMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleCallback(ctx context.Context, c tele.Context, party *domain.Party) error {
	data := strings.TrimSpace(c.Callback().Data)
	if orderID, ok := strings.CutPrefix(data, "take:"); ok {
		return b.handleTake(ctx, c, party, orderID)
	}
	return c.Respond(&tele.CallbackResponse{Text: "Unknown action"})
}

func (b *Bot) handleText(ctx context.Context, c tele.Context, party *domain.Party) error {
	switch party.Role {
	case domain.RoleClient:
		return b.clientText(ctx, c, party)
	case domain.RoleContractor:
		return b.contractorText(ctx, c, party)
	default:
		return c.Send("Use /start for the command list.")
	}
}

func (b *Bot) setState(ctx context.Context, party *domain.Party, state string) {
	if err := b.deps.Registry.SetConversationState(ctx, party.ID, &state); err != nil {
		b.deps.Logger.Error("persist conversation state failed",
			zap.String("party_id", party.ID), zap.Error(err))
	}
}

func (b *Bot) clearState(ctx context.Context, party *domain.Party) {
	if party.BotState == nil {
		return
	}
	if err := b.deps.Registry.SetConversationState(ctx, party.ID, nil); err != nil {
		b.deps.Logger.Error("clear conversation state failed",
			zap.String("party_id", party.ID), zap.Error(err))
	}
}

func stateIs(party *domain.Party, state string) bool {
	return party.BotState != nil && *party.BotState == state
}
