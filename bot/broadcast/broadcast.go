// Package broadcast fans a message out to every active chat.
package broadcast

import (
	"context"
	"fmt"

	"github.com/m3rciful/edubot/core/conversation"
	"github.com/m3rciful/edubot/core/logger"

	"log/slog"
)

// Notifier implements conversation.Broadcaster on top of the user directory
// and the outbound sender. Individual delivery failures are logged and
// skipped; one dead chat must not abort the whole fan-out.
type Notifier struct {
	users  conversation.UserDirectory
	sender conversation.Sender
}

// NewNotifier wires the directory and the outbound sender.
func NewNotifier(users conversation.UserDirectory, sender conversation.Sender) *Notifier {
	return &Notifier{users: users, sender: sender}
}

// Broadcast sends text to every active chat and reports the reached count.
func (n *Notifier) Broadcast(ctx context.Context, text string) (int, error) {
	ids, err := n.users.ActiveChatIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("broadcast: list recipients: %w", err)
	}

	sent := 0
	for _, chatID := range ids {
		if err := n.sender.Send(ctx, chatID, text); err != nil {
			logger.Warn(ctx, "broadcast", "send.skip",
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		sent++
	}

	logger.Info(ctx, "broadcast", "fanout.done",
		slog.Int("recipients", len(ids)),
		slog.Int("sent", sent),
	)
	return sent, nil
}
