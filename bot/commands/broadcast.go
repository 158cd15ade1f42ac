package commands

import (
	"context"
	"fmt"

	"github.com/m3rciful/edubot/core/conversation"
)

// Broadcast collects a message and a confirmation, then fans it out to
// every active chat. The confirm prompt repeats the text so an admin sees
// exactly what goes out.
func Broadcast() *conversation.Definition {
	return &conversation.Definition{
		Token:       "/broadcast",
		Description: "Send an announcement to everyone",
		Roles:       []string{RoleAdmin},
		States: []conversation.State{
			conversation.PromptState{
				Prompt:   "What should the announcement say?",
				Key:      "text",
				Validate: conversation.NonBlank("Announcement"),
			},
			conversation.ActionState{
				Name: "echo_preview",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					return t.Send(ctx, fmt.Sprintf(
						"The announcement will read:\n\n%s", mustString(t, "text")))
				},
			},
			conversation.PromptState{
				Prompt:   "Send it to everyone? (yes/no)",
				Key:      "confirm",
				Validate: conversation.OneOf("Answer", "yes", "no"),
			},
			conversation.ActionState{
				Name: "fan_out",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					if mustString(t, "confirm") != "yes" {
						return t.Send(ctx, "Announcement discarded.")
					}
					sent, err := t.Services.Notifier.Broadcast(ctx, mustString(t, "text"))
					if err != nil {
						return conversation.Collab("broadcast",
							"The announcement could not be delivered. Please try again later.", err)
					}
					return t.Send(ctx, fmt.Sprintf("Announcement sent to %d chats.", sent))
				},
			},
		},
	}
}
