package router

import (
	"context"
	"strings"
	"time"

	"github.com/m3rciful/edubot/core/conversation"
	tg "github.com/m3rciful/edubot/core/telegram"
	tghelpers "github.com/m3rciful/edubot/core/telegram/helpers"
	"github.com/m3rciful/edubot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// RoleResolver maps a Telegram sender to a principal the engine understands.
// Returning allowed=false drops the update silently (blocked principals).
type RoleResolver func(ctx context.Context, sender *tele.User) (p conversation.Principal, allowed bool, err error)

// EngineRoutes binds text updates to the conversation engine. Every text
// message, command or not, flows through Engine.HandleMessage; the engine
// decides between starting a command, resuming a session, or the unknown
// fallback.
func EngineRoutes(engine *conversation.Engine, resolve RoleResolver) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()
		sender := c.Sender()
		if sender == nil || sender.IsBot {
			return nil
		}

		ctx := tghelpers.BuildContext(c)

		p, allowed, err := resolve(ctx, sender)
		if err != nil {
			logHandlerSummary(c, "resolve_principal", start, "", "", err)
			return nil
		}
		if !allowed {
			logHandlerSummary(c, "resolve_principal", start, "skip", "blocked", nil)
			return nil
		}

		name := handlerName(text)
		return handleWithSummary(c, name, start, "", "", func() error {
			return engine.HandleMessage(ctx, conversation.Inbound{
				Principal: p,
				Text:      text,
			})
		})
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}

// handlerName labels the summary line: the command token when the message
// starts one, "turn" for mid-session input.
func handlerName(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "turn"
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "turn"
	}
	return normalizeHandlerName(fields[0])
}
