package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/edubot/core/conversation"
)

// Help lists the commands available to the caller's role. The listing is
// computed per turn, so it stays correct when a role changes mid-day.
func Help(reg *conversation.Registry) *conversation.Definition {
	return &conversation.Definition{
		Token:       "/help",
		Description: "List available commands",
		Hidden:      true,
		States: []conversation.State{
			conversation.ActionState{
				Name: "list_commands",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					var b strings.Builder
					b.WriteString("Available commands:\n")
					for _, def := range reg.All() {
						if def.Hidden || !def.Allowed(t.Principal.Role) {
							continue
						}
						fmt.Fprintf(&b, "%s - %s\n", def.Token, def.Description)
					}
					b.WriteString("/cancel - abandon the current command")
					return t.Send(ctx, b.String())
				},
			},
		},
	}
}
