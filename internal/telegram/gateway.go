package telegram

import (
	"context"

	tele "gopkg.in/telebot.v3"

	"github.com/supportdesk/orderbot/internal/gateway"
)

// botGateway adapts the telebot client to the engine's gateway interface.
type botGateway struct {
	bot *tele.Bot
}

// NewGateway wraps a telebot client as a gateway.Gateway.
func NewGateway(bot *tele.Bot) gateway.Gateway {
	return &botGateway{bot: bot}
}

func (g *botGateway) Send(_ context.Context, chatID int64, text string) error {
	if _, err := g.bot.Send(&tele.User{ID: chatID}, text); err != nil {
		return &gateway.TransportError{ChatID: chatID, Err: err}
	}
	return nil
}
