package telegram

import (
	"context"
	"errors"

	"github.com/m3rciful/edubot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned when a send is attempted before Bind.
var ErrNotBound = errors.New("telegram: sender not bound to a bot")

// ChatSender delivers engine replies to Telegram chats. It satisfies the
// conversation.Sender contract and pushes the actual API calls through the
// outbound dispatcher so engine turns never block on the network.
type ChatSender struct {
	bot  *tele.Bot
	disp *sender.Dispatcher
}

// NewChatSender creates an unbound sender. Bind must be called once the bot
// exists, before the first update is handled.
func NewChatSender(disp *sender.Dispatcher) *ChatSender {
	return &ChatSender{disp: disp}
}

// Bind attaches the live bot instance.
func (s *ChatSender) Bind(bot *tele.Bot) {
	s.bot = bot
}

// Send delivers text to the chat identified by principalID.
func (s *ChatSender) Send(ctx context.Context, principalID int64, text string) error {
	bot := s.bot
	if bot == nil {
		return ErrNotBound
	}
	recipient := &tele.User{ID: principalID}
	if s.disp == nil {
		_, err := bot.Send(recipient, text)
		return err
	}
	return s.disp.Enqueue(ctx, "engine.reply", func() error {
		_, err := bot.Send(recipient, text)
		return err
	})
}
