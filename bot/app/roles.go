package app

import (
	"context"
	"errors"

	"github.com/m3rciful/edubot/bot/commands"
	"github.com/m3rciful/edubot/core/conversation"
	"github.com/m3rciful/edubot/core/logger"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// resolvePrincipal maps a Telegram sender to a principal. The configured
// admin id always resolves to the admin role, so the platform stays
// reachable even with an empty directory. Unknown senders get an empty
// role and can only run unrestricted commands like /help.
func (a *App) resolvePrincipal(ctx context.Context, sender *tele.User) (conversation.Principal, bool, error) {
	p := conversation.Principal{
		ID:   sender.ID,
		Name: displayName(sender),
	}

	if adminID := a.cfg.Core.Telegram.AdminID; adminID != 0 && sender.ID == adminID {
		p.Role = commands.RoleAdmin
		return p, true, nil
	}

	user, err := a.users.ByChatID(ctx, sender.ID)
	if errors.Is(err, conversation.ErrNotFound) {
		return p, true, nil
	}
	if err != nil {
		logger.Warn(ctx, "app", "principal.resolve",
			slog.Int64("principal_id", sender.ID),
			slog.String("err", err.Error()),
		)
		return conversation.Principal{}, false, err
	}
	if user.Blocked {
		return conversation.Principal{}, false, nil
	}

	p.Role = user.Role
	if user.Name != "" {
		p.Name = user.Name
	}
	return p, true, nil
}

func displayName(u *tele.User) string {
	switch {
	case u.Username != "":
		return u.Username
	case u.LastName != "":
		return u.FirstName + " " + u.LastName
	default:
		return u.FirstName
	}
}
